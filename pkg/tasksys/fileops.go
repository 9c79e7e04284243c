package tasksys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/interp"
)

var defaultExecHandler = interp.DefaultExecHandler(2)

// execHandler intercepts rm, mv and mkdir and runs them in-process so that
// the destructive task commands (clean_docs in particular) behave
// consistently on every platform.
func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 {
		hc := interp.HandlerCtx(ctx)

		switch args[0] {
		case "rm":
			return removePaths(hc.Dir, args[1:])
		case "mv":
			return movePaths(hc.Dir, args[1:])
		case "mkdir":
			return makeDirs(hc.Dir, args[1:])
		}
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// splitFlags separates single-dash flag letters from the operands. The shell
// has already expanded globs at this point, so operands are literal paths.
func splitFlags(args []string) (map[rune]bool, []string) {
	flags := map[rune]bool{}
	operands := make([]string, 0, len(args))

	for _, arg := range args {
		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			for _, letter := range arg[1:] {
				flags[letter] = true
			}
		} else {
			operands = append(operands, arg)
		}
	}

	return flags, operands
}

func resolveOperand(dir, item string) string {
	if filepath.IsAbs(item) {
		return filepath.Clean(item)
	}

	return filepath.Join(dir, item)
}

func removePaths(dir string, args []string) error {
	flags, operands := splitFlags(args)
	recursive := flags['r'] || flags['R']
	force := flags['f']

	items := make([]string, 0, len(operands))
	for _, item := range operands {
		item = resolveOperand(dir, item)

		info, err := os.Stat(item)
		if err != nil {
			if force && eris.Is(err, os.ErrNotExist) {
				continue
			}

			return eris.Wrapf(err, "could not stat %s", item)
		}

		if info.IsDir() && !recursive {
			return eris.Errorf("%s is a directory but -r wasn't passed", item)
		}

		items = append(items, item)
	}

	for _, item := range items {
		err := os.RemoveAll(item)
		if err != nil && (!force || !eris.Is(err, os.ErrNotExist)) {
			return eris.Wrapf(err, "could not delete %s", item)
		}
	}

	return nil
}

func movePaths(dir string, args []string) error {
	_, operands := splitFlags(args)
	if len(operands) < 2 {
		return eris.New("mv needs a source and a destination")
	}

	dest := resolveOperand(dir, operands[len(operands)-1])
	sources := operands[:len(operands)-1]

	destInfo, err := os.Stat(dest)
	destIsDir := err == nil && destInfo.IsDir()
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to retrieve info about destination %s", dest)
	}

	if len(sources) > 1 && !destIsDir {
		return eris.Errorf("can't move multiple items to %s because it is not a directory", dest)
	}

	for _, item := range sources {
		item = resolveOperand(dir, item)

		itemDest := dest
		if destIsDir {
			itemDest = filepath.Join(dest, filepath.Base(item))
		}

		err = os.Rename(item, itemDest)
		if err != nil {
			return eris.Wrapf(err, "failed to move %s to %s", item, itemDest)
		}
	}

	return nil
}

func makeDirs(dir string, args []string) error {
	flags, operands := splitFlags(args)
	makeParents := flags['p']

	for _, item := range operands {
		item = resolveOperand(dir, item)

		var err error
		if makeParents {
			err = os.MkdirAll(item, 0770)
		} else {
			err = os.Mkdir(item, 0770)
		}

		if err != nil {
			return eris.Wrapf(err, "failed to create %s", item)
		}
	}

	return nil
}
