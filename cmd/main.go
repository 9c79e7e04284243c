// Package cmd implements the sitetask CLI for the documentation site.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/charlesreid1/how-do-i-snakemake/pkg"
	"github.com/charlesreid1/how-do-i-snakemake/pkg/tasksys"
)

const (
	siteConfigName = "site.yml"
	taskScriptName = "tasks.star"
	cacheName      = ".sitetask-cache"
)

var rootCmd = &cobra.Command{
	Use:   "sitetask [task...]",
	Short: "Maintenance tasks for the documentation site",
	Long: `Runs the named site tasks in order. The built-in tasks clone the deployed
site, initialize the theme submodules, build and serve the documentation,
clean the generated content and deploy the result to both remotes.
Additional tasks can be declared in a tasks.star file next to site.yml.

Without arguments, the available tasks are listed. Arguments of the form
option=value are passed to the task script.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		taskArgs := make([]string, 0)
		options := make(map[string]string)
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}

		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos > -1 {
				options[part[:pos]] = part[pos+1:]
			} else {
				taskArgs = append(taskArgs, part)
			}
		}

		logger := zerolog.New(NewConsoleWriter()).Level(zerolog.InfoLevel)
		if verbose {
			logger = logger.Level(zerolog.DebugLevel)
		}

		ctx := tasksys.WithLogger(context.Background(), &logger)

		wd, err := os.Getwd()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to retrieve the current working directory")
		}

		root, err := pkg.GetProjectRoot(wd)
		if err != nil {
			logger.Fatal().Err(err).Msg("No project root found")
		}

		cfg, err := tasksys.LoadSiteConfig(filepath.Join(root, siteConfigName))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load the site configuration")
		}

		tasks := tasksys.DefaultTasks(root, cfg)

		scriptTasks, err := loadScriptTasks(ctx, root, options)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load the task script")
		}
		tasks = append(tasks, scriptTasks...)

		taskList, err := tasksys.NewTaskList(tasks)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build the task list")
		}

		opts := tasksys.RunOpts{
			DryRun:  dryRun,
			Force:   force,
			Verbose: verbose,
		}

		for _, name := range taskArgs {
			err = tasksys.RunTask(ctx, root, name, taskList, opts)
			if err != nil {
				var cmdErr *tasksys.CommandFailedError
				if eris.As(err, &cmdErr) {
					logger.Fatal().
						Str("task", cmdErr.Task).
						Str("command", cmdErr.Command).
						Int("exitStatus", cmdErr.ExitStatus).
						Msgf("Failed task %s", name)
				}

				logger.Fatal().Err(err).Msgf("Failed task %s", name)
			}
		}

		if len(taskArgs) == 0 {
			printTaskList(tasks)
		}

		return nil
	},
}

// loadScriptTasks returns the tasks declared by tasks.star, if present. The
// parsed script is cached; the cache is reused as long as it's newer than
// the script and no new option values were passed.
func loadScriptTasks(ctx context.Context, root string, options map[string]string) ([]*tasksys.Task, error) {
	scriptPath := filepath.Join(root, taskScriptName)
	_, err := os.Stat(scriptPath)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, eris.Wrapf(err, "failed to check %s", scriptPath)
	}

	cachePath := filepath.Join(root, cacheName)
	stale, err := tasksys.CacheIsStale(cachePath, scriptPath)
	if err != nil {
		return nil, err
	}

	if !stale && len(options) == 0 {
		// a broken cache isn't fatal, we just parse the script again
		_, tasks, err := tasksys.ReadCache(cachePath)
		if err == nil {
			return tasks, nil
		}
	}

	tasks, _, err := tasksys.RunScript(ctx, scriptPath, root, options, true)
	return tasks, err
}

func printTaskList(tasks []*tasksys.Task) {
	fmt.Println("Available tasks:")

	maxNameLen := 0
	for _, task := range tasks {
		if task.Hidden {
			continue
		}

		if len(task.Name) > maxNameLen {
			maxNameLen = len(task.Name)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, task := range tasks {
		if task.Hidden {
			continue
		}

		fmt.Printf(lineFmt, task.Name+":", task.Desc)
	}
}

func init() {
	rootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.Flags().BoolP("force", "f", false, "always execute the passed tasks even if they don't have to run")
	rootCmd.Flags().BoolP("verbose", "v", false, "print each command before it's executed")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
