package pkg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

var rootMarkers = []string{"site.yml", "tasks.star", "mkdocs.yml", ".git"}

// GetProjectRoot walks up from the given directory until it finds one of
// the project markers (site.yml, tasks.star, mkdocs.yml or .git).
func GetProjectRoot(start string) (string, error) {
	path, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrap(err, "failed to resolve start directory")
	}

	for {
		for _, marker := range rootMarkers {
			_, err := os.Stat(filepath.Join(path, marker))
			if err == nil {
				return path, nil
			}
			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrap(err, "error occurred while searching for project root")
			}
		}

		nextPath := filepath.Dir(path)
		if path == nextPath {
			break
		}
		path = nextPath
	}

	return "", eris.New("project root not found")
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
