package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/charlesreid1/how-do-i-snakemake/pkg"
	"github.com/charlesreid1/how-do-i-snakemake/pkg/tasksys"
)

var configureCmd = &cobra.Command{
	Use:   "configure [option=value...]",
	Short: "Evaluates tasks.star and caches the declared tasks",
	Long: `Evaluates the project's tasks.star with the given option values and caches
the result. Later runs reuse the cache until tasks.star changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		options := make(map[string]string)
		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos == -1 {
				return eris.Errorf("expected option=value but got %s", part)
			}

			options[part[:pos]] = part[pos+1:]
		}

		logger := zerolog.New(NewConsoleWriter())
		ctx := tasksys.WithLogger(context.Background(), &logger)

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to retrieve the current working directory")
		}

		root, err := pkg.GetProjectRoot(wd)
		if err != nil {
			return err
		}

		scriptPath := filepath.Join(root, taskScriptName)
		tasks, declaredOptions, err := tasksys.RunScript(ctx, scriptPath, root, options, true)
		if err != nil {
			return err
		}

		err = tasksys.WriteCache(filepath.Join(root, cacheName), options, tasks)
		if err != nil {
			return eris.Wrap(err, "failed to write the task cache")
		}

		pkg.PrintTask("Configured options")
		names := make([]string, 0, len(declaredOptions))
		for name := range declaredOptions {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			opt := declaredOptions[name]
			value, ok := options[name]
			if !ok {
				value = opt.Default()
			}

			line := fmt.Sprintf("%s = %q", name, value)
			if opt.Help != "" {
				line += "  (" + opt.Help + ")"
			}
			pkg.PrintSubtask(line)
		}

		pkg.PrintTask(fmt.Sprintf("Cached %d tasks", len(tasks)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
