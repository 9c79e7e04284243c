package cmd

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/charlesreid1/how-do-i-snakemake/pkg"
)

// themeSpec describes one theme archive listed in THEMES.yml. Dest is
// relative to the project root (usually somewhere under site/themes/).
type themeSpec struct {
	URL    string
	Dest   string
	Sha256 string
	Strip  int
}

type themeConfig struct {
	Themes map[string]themeSpec
}

var fetchThemesCmd = &cobra.Command{
	Use:   "fetch-themes",
	Short: "Downloads and unpacks the documentation themes",
	Long: `Downloads and unpacks the theme archives listed in THEMES.yml. Each archive
is verified against its recorded sha256 checksum. Themes that are already
up to date are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := cmd.Flags().GetBool("update")
		if err != nil {
			return err
		}

		pkg.PrintTask("Loading theme manifest")
		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to retrieve the current working directory")
		}

		root, err := pkg.GetProjectRoot(wd)
		if err != nil {
			return err
		}

		cfg, stamps, err := getThemeConfig(root)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading themes")
		err = downloadThemes(cfg, stamps, root, update)

		stampPath := filepath.Join(root, "THEMES.stamps")
		stampData, jErr := json.Marshal(stamps)
		if jErr != nil {
			pkg.PrintError(jErr.Error())
		}

		jErr = ioutil.WriteFile(stampPath, stampData, os.FileMode(0660))
		if jErr != nil {
			pkg.PrintError(jErr.Error())
		}

		pkg.PrintTask("Done")

		return err
	},
}

func init() {
	fetchThemesCmd.Flags().BoolP("update", "u", false, "print new checksums for changed archives instead of failing")

	rootCmd.AddCommand(fetchThemesCmd)
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

func getThemeConfig(projectRoot string) (themeConfig, map[string]string, error) {
	var cfg themeConfig
	cfgPath := filepath.Join(projectRoot, "THEMES.yml")
	cfgData, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "could not open file %s", cfgPath)
	}

	err = yaml.Unmarshal(cfgData, &cfg)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "failed to parse %s", cfgPath)
	}

	stamps := map[string]string{}
	stampPath := filepath.Join(projectRoot, "THEMES.stamps")
	stampData, err := ioutil.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return cfg, nil, eris.Wrapf(err, "failed to read stamps file %s", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return cfg, nil, eris.Wrapf(err, "failed to parse JSON file %s", stampPath)
		}
	}

	return cfg, stamps, nil
}

func downloadThemes(cfg themeConfig, stamps map[string]string, projectRoot string, update bool) error {
	client := &http.Client{
		Timeout: time.Minute * 30,
	}
	buf := make([]byte, 4096)

	for name, meta := range cfg.Themes {
		destPath := filepath.Join(projectRoot, meta.Dest)
		destInfo, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := meta.URL + "#" + meta.Sha256
		stamp, ok := stamps[name]
		if ok && stampToken == stamp && destExists {
			continue
		}

		pkg.PrintSubtask(name + ":  " + meta.URL)
		if meta.Sha256 == "" && !update {
			return eris.Errorf("theme %s doesn't have a checksum", name)
		}

		arHandle, err := ioutil.TempFile("", "theme_dl")
		if err != nil {
			return eris.Wrap(err, "failed to create download file")
		}
		defer func() {
			arHandle.Close()
			os.Remove(arHandle.Name())
		}()

		resp, err := client.Get(meta.URL)
		if err != nil {
			return eris.Wrapf(err, "failed to start download for %s", meta.URL)
		}
		defer resp.Body.Close()

		hash := sha256.New()
		bar := getProgressBar(resp.ContentLength, "     download")
		for {
			n, err := resp.Body.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				return eris.Wrapf(err, "failed during download of %s", meta.URL)
			}

			_, err = hash.Write(buf[:n])
			if err != nil {
				return eris.Wrapf(err, "failed to calculate checksum for %s", meta.URL)
			}

			_, err = arHandle.Write(buf[:n])
			if err != nil {
				return eris.Wrap(err, "failed to write download to disk")
			}

			bar.Write(buf[:n])
		}
		bar.Finish()
		resp.Body.Close()

		digest := hex.EncodeToString(hash.Sum(nil))
		if digest != meta.Sha256 {
			if !update {
				return eris.Errorf("checksum check failed for %s", name)
			}

			pkg.PrintSubtask("new checksum: " + digest)
			meta.Sha256 = digest
			stampToken = meta.URL + "#" + digest
		}

		if destExists {
			pkg.PrintSubtask("Remove " + destPath)
			if destInfo.IsDir() {
				err = os.RemoveAll(destPath)
			} else {
				err = os.Remove(destPath)
			}
			if err != nil {
				return err
			}
		}

		extractor, err := getExtractor(meta.URL)
		if err != nil {
			return err
		}

		arHandle.Seek(0, io.SeekStart)
		bar = getProgressBar(resp.ContentLength, "      extract")
		err = extractor(arHandle, bar, projectRoot, meta)
		if err != nil {
			return err
		}

		stamps[name] = stampToken
	}

	return nil
}

type archiveExtractor func(*os.File, *progressbar.ProgressBar, string, themeSpec) error

// openExtractorDest normalizes an archive entry path, strips the configured
// number of leading elements and opens the destination file for writing.
func openExtractorDest(destPath string, item string, ts themeSpec) (*os.File, string, error) {
	pathParts := strings.Split(filepath.Clean(item), string(filepath.Separator))
	if ts.Strip >= len(pathParts) {
		return nil, "/", nil
	}

	dest := filepath.Join(destPath, strings.Join(pathParts[ts.Strip:], string(filepath.Separator)))
	if dest == destPath {
		return nil, "/", nil
	}

	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, os.FileMode(0770))
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func getExtractor(url string) (archiveExtractor, error) {
	if strings.HasSuffix(url, ".zip") {
		return extractZip, nil
	}

	if strings.HasSuffix(url, ".tar.gz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ts themeSpec) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, projectRoot, ts)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.bz2") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ts themeSpec) error {
			reader := bzip2.NewReader(f)

			return extractTar(reader, f, bar, projectRoot, ts)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.xz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ts themeSpec) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, projectRoot, ts)
		}, nil
	}

	return nil, eris.New("archive format not supported")
}

func extractZip(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ts themeSpec) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	destPath := filepath.Join(projectRoot, ts.Dest)
	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		destHandle, dest, err := openExtractorDest(destPath, item.Name, ts)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			destHandle.Close()
			return eris.Wrap(err, "failed to open archive entry")
		}

		_, err = io.Copy(destHandle, itemHandle)
		itemHandle.Close()
		destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to write extracted file %s", dest)
		}

		pos, err := f.Seek(0, io.SeekCurrent)
		if err == nil {
			bar.Set64(pos)
		}
	}

	return nil
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, projectRoot string, ts themeSpec) error {
	archive := tar.NewReader(r)
	destPath := filepath.Join(projectRoot, ts.Dest)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractorDest(destPath, item.Name, ts)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		_, err = io.Copy(destHandle, archive)
		if err != nil {
			destHandle.Close()
			return eris.Wrapf(err, "failed to write extracted file %s", dest)
		}

		err = destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to finish %s", dest)
		}

		os.Chmod(dest, fi.Mode())

		pos, err := f.Seek(0, io.SeekCurrent)
		if err == nil {
			bar.Set64(pos)
		}
	}

	return nil
}
