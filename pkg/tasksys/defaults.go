package tasksys

import (
	"fmt"
)

// DefaultTasks builds the six built-in site tasks. The returned slice keeps
// declaration order; feed it through NewTaskList for lookups. projectRoot
// must be absolute since task base directories aren't resolved again later.
func DefaultTasks(projectRoot string, cfg SiteConfig) []*Task {
	cloneSite := &Task{
		Name: "clone_site",
		Desc: "clone the deployed site branch and configure both push remotes",
		Base: projectRoot,
		Cmds: []TaskCmd{
			script("clone_site", 0, "git clone -b %s --single-branch %s site", cfg.SiteBranch, cfg.GithubRemote),
			script("clone_site", 1, "git -C site remote add github %s", cfg.GithubRemote),
			script("clone_site", 2, "git -C site remote add gitlab %s", cfg.GitlabRemote),
		},
		SkipIfExists: []string{"site"},
	}

	submoduleInit := &Task{
		Name: "submodule_init",
		Desc: "populate the theme submodules",
		Base: projectRoot,
		Cmds: []TaskCmd{
			script("submodule_init", 0, "git submodule update --init --recursive"),
		},
	}

	build := &Task{
		Name:    "build",
		Desc:    "render the documentation into site/content",
		Base:    projectRoot,
		Inputs:  []string{"docs/**/*", cfg.ConfigFile},
		Outputs: []string{"site/content/index.html"},
		Cmds: []TaskCmd{
			script("build", 0, "mkdocs build -f %s -d site/content", cfg.ConfigFile),
		},
	}

	serve := &Task{
		Name: "serve",
		Desc: "serve the documentation locally (blocks until interrupted)",
		Base: projectRoot,
		Cmds: []TaskCmd{
			script("serve", 0, "mkdocs serve -f %s -a %s", cfg.ConfigFile, cfg.ServeAddr),
		},
	}

	cleanDocs := &Task{
		Name: "clean_docs",
		Desc: "remove the generated content under site/content",
		Base: projectRoot,
		Cmds: []TaskCmd{
			script("clean_docs", 0, "rm -rf site/content/*"),
		},
	}

	deployDocs := &Task{
		Name: "deploy_docs",
		Desc: "rebuild the site and push it to both remotes",
		Base: projectRoot,
		Cmds: []TaskCmd{
			script("deploy_docs", 0, "mkdocs build -f %s -d site/content", cfg.ConfigFile),
			script("deploy_docs", 1, "git -C site add -A ."),
			script("deploy_docs", 2, "git -C site commit --allow-empty -m 'update generated docs'"),
			script("deploy_docs", 3, "git -C site push github %s && git -C site push gitlab %s", cfg.SiteBranch, cfg.SiteBranch),
		},
	}

	return []*Task{cloneSite, submoduleInit, build, serve, cleanDocs, deployDocs}
}

func script(taskName string, index int, format string, args ...interface{}) TaskCmd {
	return TaskCmdScript{
		TaskName: taskName,
		Index:    index,
		Content:  fmt.Sprintf(format, args...),
	}
}
