package pkg

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// WriteSiteArchive packs the rendered site directory into a .tar.xz file.
// The entries are stored relative to contentDir.
func WriteSiteArchive(archivePath, contentDir string) error {
	handle, err := os.Create(archivePath)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", archivePath)
	}
	defer handle.Close()

	compressor, err := xz.NewWriter(handle)
	if err != nil {
		return eris.Wrap(err, "failed to initialize xz writer")
	}

	archive := tar.NewWriter(compressor)

	err = filepath.Walk(contentDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return eris.Wrapf(err, "failed to build header for %s", path)
		}
		header.Name = filepath.ToSlash(relPath)

		err = archive.WriteHeader(header)
		if err != nil {
			return eris.Wrapf(err, "failed to write header for %s", path)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", path)
		}
		defer file.Close()

		_, err = io.Copy(archive, file)
		if err != nil {
			return eris.Wrapf(err, "failed to pack %s", path)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = archive.Close()
	if err != nil {
		return eris.Wrap(err, "failed to finish archive")
	}

	err = compressor.Close()
	if err != nil {
		return eris.Wrap(err, "failed to flush compressed data")
	}

	return handle.Close()
}

var compressibleExts = map[string]bool{
	".html": true,
	".css":  true,
	".js":   true,
	".json": true,
	".svg":  true,
	".xml":  true,
	".txt":  true,
}

// PrecompressDir writes a .br sibling next to every compressible asset in
// the given directory tree so static hosts can serve precompressed content.
// Files whose .br sibling is already up to date are skipped. Returns the
// number of files written.
func PrecompressDir(contentDir string) (int, error) {
	written := 0

	err := filepath.Walk(contentDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() || strings.HasSuffix(path, ".br") {
			return nil
		}

		if !compressibleExts[filepath.Ext(path)] {
			return nil
		}

		brPath := path + ".br"
		brInfo, err := os.Stat(brPath)
		if err == nil && brInfo.ModTime().After(info.ModTime()) {
			return nil
		}
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "failed to check %s", brPath)
		}

		source, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", path)
		}
		defer source.Close()

		dest, err := os.Create(brPath)
		if err != nil {
			return eris.Wrapf(err, "failed to create %s", brPath)
		}
		defer dest.Close()

		compressor := brotli.NewWriterLevel(dest, brotli.BestCompression)
		_, err = io.Copy(compressor, source)
		if err != nil {
			return eris.Wrapf(err, "failed to compress %s", path)
		}

		err = compressor.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to flush %s", brPath)
		}

		written++
		return dest.Close()
	})
	if err != nil {
		return written, err
	}

	return written, nil
}
