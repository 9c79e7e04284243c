package pkg

import (
	"archive/tar"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestWriteSiteArchive(t *testing.T) {
	root := t.TempDir()
	contentDir := filepath.Join(root, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, "sub"), 0770))
	require.NoError(t, ioutil.WriteFile(filepath.Join(contentDir, "index.html"), []byte("<html>hi</html>"), 0660))
	require.NoError(t, ioutil.WriteFile(filepath.Join(contentDir, "sub", "page.html"), []byte("<html>sub</html>"), 0660))

	archivePath := filepath.Join(root, "site.tar.xz")
	require.NoError(t, WriteSiteArchive(archivePath, contentDir))

	handle, err := os.Open(archivePath)
	require.NoError(t, err)
	defer handle.Close()

	decompressor, err := xz.NewReader(handle)
	require.NoError(t, err)

	entries := map[string]string{}
	archive := tar.NewReader(decompressor)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		if header.Typeflag == tar.TypeDir {
			entries[header.Name] = ""
			continue
		}

		content, err := ioutil.ReadAll(archive)
		require.NoError(t, err)
		entries[header.Name] = string(content)
	}

	assert.Contains(t, entries, "sub")
	assert.Equal(t, "<html>hi</html>", entries["index.html"])
	assert.Equal(t, "<html>sub</html>", entries["sub/page.html"])
}

func TestPrecompressDir(t *testing.T) {
	contentDir := t.TempDir()
	htmlPath := filepath.Join(contentDir, "index.html")
	require.NoError(t, ioutil.WriteFile(htmlPath, []byte("<html>hello brotli</html>"), 0660))
	require.NoError(t, ioutil.WriteFile(filepath.Join(contentDir, "logo.png"), []byte("binary"), 0660))

	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(htmlPath, older, older))

	written, err := PrecompressDir(contentDir)
	require.NoError(t, err)
	assert.Equal(t, 1, written, "only the .html file is compressible")

	handle, err := os.Open(htmlPath + ".br")
	require.NoError(t, err)
	defer handle.Close()

	content, err := ioutil.ReadAll(brotli.NewReader(handle))
	require.NoError(t, err)
	assert.Equal(t, "<html>hello brotli</html>", string(content))

	// the sibling is up to date now, a second pass writes nothing
	written, err = PrecompressDir(contentDir)
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	// touching the source forces a rewrite
	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(htmlPath, newer, newer))

	written, err = PrecompressDir(contentDir)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
}
