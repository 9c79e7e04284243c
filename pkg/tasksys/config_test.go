package tasksys

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSiteConfigDefaults(t *testing.T) {
	cfg, err := LoadSiteConfig(filepath.Join(t.TempDir(), "site.yml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGithubRemote, cfg.GithubRemote)
	assert.Equal(t, DefaultGitlabRemote, cfg.GitlabRemote)
	assert.Equal(t, DefaultSiteBranch, cfg.SiteBranch)
	assert.Equal(t, DefaultConfigFile, cfg.ConfigFile)
	assert.Equal(t, DefaultServeAddr, cfg.ServeAddr)
}

func TestLoadSiteConfigPartialOverride(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "site.yml")
	require.NoError(t, ioutil.WriteFile(cfgPath, []byte("siteBranch: pages\nserveAddr: 0.0.0.0:8080\n"), 0660))

	cfg, err := LoadSiteConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "pages", cfg.SiteBranch)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServeAddr)
	// untouched values keep their defaults
	assert.Equal(t, DefaultGithubRemote, cfg.GithubRemote)
	assert.Equal(t, DefaultConfigFile, cfg.ConfigFile)
}

func TestLoadSiteConfigBadYaml(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "site.yml")
	require.NoError(t, ioutil.WriteFile(cfgPath, []byte(":\n\t- nope"), 0660))

	_, err := LoadSiteConfig(cfgPath)
	require.Error(t, err)
}
