package tasksys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTasksRegistry(t *testing.T) {
	root := t.TempDir()
	tasks := DefaultTasks(root, defaultSiteConfig())

	names := make([]string, len(tasks))
	for idx, task := range tasks {
		names[idx] = task.Name
	}

	assert.Equal(t, []string{
		"clone_site",
		"submodule_init",
		"build",
		"serve",
		"clean_docs",
		"deploy_docs",
	}, names)

	_, err := NewTaskList(tasks)
	require.NoError(t, err)
}

func TestCloneSiteCommands(t *testing.T) {
	root := t.TempDir()
	cfg := defaultSiteConfig()
	tasks, err := NewTaskList(DefaultTasks(root, cfg))
	require.NoError(t, err)

	clone := tasks["clone_site"]
	require.Len(t, clone.Cmds, 3)
	assert.Equal(t, []string{"site"}, clone.SkipIfExists)

	rec := &execRecorder{}
	err = RunTask(testContext(), root, "clone_site", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, "git", rec.calls[0][0])
	assert.Contains(t, rec.calls[0], cfg.GithubRemote)
	assert.Contains(t, rec.calls[1], "github")
	assert.Contains(t, rec.calls[2], "gitlab")
	assert.Contains(t, rec.calls[2], cfg.GitlabRemote)
}

func TestCloneSiteSkipsExistingCheckout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "site"), 0770))

	tasks, err := NewTaskList(DefaultTasks(root, defaultSiteConfig()))
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), root, "clone_site", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
}

func TestDeployDocsStopsAtFailedCommit(t *testing.T) {
	root := t.TempDir()
	tasks, err := NewTaskList(DefaultTasks(root, defaultSiteConfig()))
	require.NoError(t, err)

	deploy := tasks["deploy_docs"]
	require.Len(t, deploy.Cmds, 4)

	// third command is the commit, fourth the push
	commit := deploy.Cmds[2].(TaskCmdScript)
	assert.Contains(t, commit.Content, "commit")
	push := deploy.Cmds[3].(TaskCmdScript)
	assert.Contains(t, push.Content, "push")

	rec := &execRecorder{failAt: 3, status: 1}
	err = RunTask(testContext(), root, "deploy_docs", tasks, RunOpts{Exec: rec.handler})
	require.Error(t, err)

	var cmdErr *CommandFailedError
	require.True(t, eris.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Command, "commit")

	// the push was never attempted
	require.Len(t, rec.calls, 3)
	assert.Contains(t, rec.calls[2], "commit")
}

func TestCleanDocsRemovesGeneratedContent(t *testing.T) {
	root := t.TempDir()
	contentDir := filepath.Join(root, "site", "content")
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, "sub"), 0770))
	require.NoError(t, ioutil.WriteFile(filepath.Join(contentDir, "a.txt"), []byte("a"), 0660))
	require.NoError(t, ioutil.WriteFile(filepath.Join(contentDir, "sub", "b.html"), []byte("b"), 0660))

	tasks, err := NewTaskList(DefaultTasks(root, defaultSiteConfig()))
	require.NoError(t, err)

	// no exec override here, clean_docs runs through the real rm handler
	err = RunTask(testContext(), root, "clean_docs", tasks, RunOpts{})
	require.NoError(t, err)

	entries, err := ioutil.ReadDir(contentDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDefaultTasksUseConfigValues(t *testing.T) {
	root := t.TempDir()
	cfg := SiteConfig{
		GithubRemote: "git@example.com:docs/site.git",
		GitlabRemote: "git@example.org:docs/site.git",
		SiteBranch:   "pages",
		ConfigFile:   "mkdocs-alt.yml",
		ServeAddr:    "127.0.0.1:9999",
	}

	tasks, err := NewTaskList(DefaultTasks(root, cfg))
	require.NoError(t, err)

	build := tasks["build"].Cmds[0].(TaskCmdScript)
	assert.Contains(t, build.Content, "mkdocs-alt.yml")

	serve := tasks["serve"].Cmds[0].(TaskCmdScript)
	assert.Contains(t, serve.Content, "127.0.0.1:9999")

	push := tasks["deploy_docs"].Cmds[3].(TaskCmdScript)
	assert.Contains(t, push.Content, "pages")

	clone := tasks["clone_site"].Cmds[0].(TaskCmdScript)
	assert.Contains(t, clone.Content, "git@example.com:docs/site.git")
}
