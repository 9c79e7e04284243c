package tasksys

import (
	"io/ioutil"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Defaults for the site configuration. The deployed site lives on the
// gh-pages branch and gets pushed to both hosts.
const (
	DefaultGithubRemote = "git@github.com:charlesreid1/how-do-i-snakemake.git"
	DefaultGitlabRemote = "git@gitlab.com:charlesreid1/how-do-i-snakemake.git"
	DefaultSiteBranch   = "gh-pages"
	DefaultConfigFile   = "mkdocs.yml"
	DefaultServeAddr    = "127.0.0.1:8000"
)

// SiteConfig holds the few values that are substituted into the built-in
// task commands. All fields are optional; missing values fall back to the
// defaults above.
type SiteConfig struct {
	GithubRemote string `yaml:"githubRemote"`
	GitlabRemote string `yaml:"gitlabRemote"`
	SiteBranch   string `yaml:"siteBranch"`
	ConfigFile   string `yaml:"configFile"`
	ServeAddr    string `yaml:"serveAddr"`
}

func defaultSiteConfig() SiteConfig {
	return SiteConfig{
		GithubRemote: DefaultGithubRemote,
		GitlabRemote: DefaultGitlabRemote,
		SiteBranch:   DefaultSiteBranch,
		ConfigFile:   DefaultConfigFile,
		ServeAddr:    DefaultServeAddr,
	}
}

// LoadSiteConfig reads the given site.yml file. A missing file is fine and
// yields the default configuration.
func LoadSiteConfig(path string) (SiteConfig, error) {
	cfg := defaultSiteConfig()

	content, err := ioutil.ReadFile(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, eris.Wrapf(err, "failed to read %s", path)
	}

	err = yaml.Unmarshal(content, &cfg)
	if err != nil {
		return cfg, eris.Wrapf(err, "failed to parse %s", path)
	}

	if cfg.GithubRemote == "" {
		cfg.GithubRemote = DefaultGithubRemote
	}
	if cfg.GitlabRemote == "" {
		cfg.GitlabRemote = DefaultGitlabRemote
	}
	if cfg.SiteBranch == "" {
		cfg.SiteBranch = DefaultSiteBranch
	}
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = DefaultConfigFile
	}
	if cfg.ServeAddr == "" {
		cfg.ServeAddr = DefaultServeAddr
	}

	return cfg, nil
}
