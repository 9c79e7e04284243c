package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/charlesreid1/how-do-i-snakemake/pkg"
)

var packSiteCmd = &cobra.Command{
	Use:   "pack-site [archive] [directory]",
	Short: "Packs the rendered site into a .tar.xz archive",
	Long: `Packs the rendered site content into a .tar.xz release artifact. Without
arguments, site/content is packed into site-<date>.tar.xz.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 2 {
			return eris.New("expected at most 2 arguments")
		}

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to retrieve the current working directory")
		}

		root, err := pkg.GetProjectRoot(wd)
		if err != nil {
			return err
		}

		archivePath := fmt.Sprintf("site-%s.tar.xz", time.Now().Format("2006-01-02"))
		if len(args) > 0 {
			archivePath = args[0]
		}

		contentDir := filepath.Join(root, "site", "content")
		if len(args) > 1 {
			contentDir = args[1]
		}

		info, err := os.Stat(contentDir)
		if err != nil || !info.IsDir() {
			return eris.Errorf("%s doesn't exist or is not a directory; run the build task first", contentDir)
		}

		pkg.PrintTask(fmt.Sprintf("Packing %s into %s", contentDir, archivePath))
		err = pkg.WriteSiteArchive(archivePath, contentDir)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

var precompressCmd = &cobra.Command{
	Use:   "precompress [directory]",
	Short: "Writes .br siblings next to compressible site assets",
	Long: `Writes brotli-compressed siblings next to the compressible assets in the
rendered site so static hosts can serve precompressed content. Assets whose
.br sibling is already up to date are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return eris.New("expected at most 1 argument")
		}

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to retrieve the current working directory")
		}

		root, err := pkg.GetProjectRoot(wd)
		if err != nil {
			return err
		}

		contentDir := filepath.Join(root, "site", "content")
		if len(args) > 0 {
			contentDir = args[0]
		}

		pkg.PrintTask("Precompressing " + contentDir)
		written, err := pkg.PrecompressDir(contentDir)
		if err != nil {
			return err
		}

		pkg.PrintTask(fmt.Sprintf("Compressed %d files", written))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packSiteCmd)
	rootCmd.AddCommand(precompressCmd)
}
