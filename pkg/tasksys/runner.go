package tasksys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// RunOpts controls a single RunTask call.
type RunOpts struct {
	// DryRun prints the commands a task would run without executing them.
	DryRun bool
	// Verbose prints each command before it's executed.
	Verbose bool
	// Force runs the task even if its skip and freshness checks say it
	// doesn't have to.
	Force bool
	// Exec overrides the command executor. Tests use this to record the
	// commands a task runs instead of spawning processes.
	Exec interp.ExecHandlerFunc
}

func (o RunOpts) execHandler() interp.ExecHandlerFunc {
	if o.Exec != nil {
		return o.Exec
	}

	return execHandler
}

// Task status within one RunTask call. A task that failed surfaces its error
// instead of recording a state; both outcomes are final.
type taskStatus int8

const (
	statusPending taskStatus = iota
	statusRunning
	statusSucceeded
)

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		status      map[string]taskStatus
		projectRoot string
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

func getTaskEnv(task *Task) expand.Environ {
	envVars := os.Environ()

	for name, value := range task.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

func resolvePatternLists(ctx context.Context, base string, patterns []string) ([]string, error) {
	result := []string{}
	cfg := expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	projectRoot := getRuntimeCtx(ctx).projectRoot
	parser := syntax.NewParser()

	for _, item := range patterns {
		item = normalizePath(base, projectRoot, item)
		item = filepath.ToSlash(item)

		words := make([]*syntax.Word, 0)
		parser.Words(strings.NewReader(item), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// If a pattern didn't match anything, it's returned as a result. Skip those results.
			if !strings.Contains(match, "*") {
				result = append(result, match)
			}
		}
	}
	return result, nil
}

// RunTask executes the named task. Unknown names yield an UnknownTaskError,
// a command that exits non-zero aborts the rest of the task with a
// CommandFailedError. Side effects of the commands that already ran are
// left as-is.
func RunTask(ctx context.Context, projectRoot, name string, tasks TaskList, opts RunOpts) error {
	rctx := runtimeCtx{
		projectRoot: projectRoot,
		status:      make(map[string]taskStatus),
	}

	ctx = context.WithValue(ctx, runtimeCtxKey{}, &rctx)
	task, found := tasks[name]
	if !found {
		return &UnknownTaskError{Name: name}
	}

	return runTask(ctx, task, tasks, opts, true)
}

func runTask(ctx context.Context, task *Task, tasks TaskList, opts RunOpts, canSkip bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	switch rctx.status[task.Name] {
	case statusSucceeded:
		log(ctx).Debug().Msgf("Task %s already run", task.Name)
		return nil
	case statusRunning:
		return eris.Errorf("Task %s was called recursively", task.Name)
	}

	rctx.status[task.Name] = statusRunning

	for _, dep := range task.Deps {
		if rctx.status[dep] != statusSucceeded {
			depTask, ok := tasks[dep]
			if !ok {
				return &UnknownTaskError{Name: dep}
			}

			err := runTask(ctx, depTask, tasks, opts, true)
			if err != nil {
				return eris.Wrapf(err, "Task %s failed due to its dependency %s", task.Name, dep)
			}
		}
	}

	if canSkip && !opts.Force {
		skip, err := shouldSkip(ctx, task)
		if err != nil {
			return err
		}

		if skip {
			rctx.status[task.Name] = statusSucceeded
			return nil
		}
	}

	// With the skip and freshness checks done, we can finally start executing
	runner, err := interp.New(
		interp.Dir(task.Base),
		interp.Env(getTaskEnv(task)),
		interp.ExecHandler(opts.execHandler()),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	parser := syntax.NewParser()
	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, item := range task.Cmds {
		stmts, err := item.ToShellStmts(parser)
		if err != nil {
			return eris.Wrap(err, "failed to parse shell script")
		}
		if stmts != nil {
			for _, stm := range stmts {
				strBuffer.Reset()
				printer.Print(&strBuffer, stm)
				cmdText := strBuffer.String()

				evt := log(ctx).Debug()
				if opts.Verbose || opts.DryRun {
					evt = log(ctx).Info()
				}
				evt.Str("task", task.Name).
					Bool("command", true).
					Msg(cmdText)

				if !opts.DryRun {
					err = runner.Run(ctx, stm)
					if err != nil {
						if status, ok := interp.IsExitStatus(err); ok {
							return &CommandFailedError{
								Task:       task.Name,
								Command:    cmdText,
								ExitStatus: int(status),
							}
						}

						return eris.Wrapf(err, "command %q failed", cmdText)
					}

					if runner.Exited() {
						return nil
					}
				}
			}
		} else {
			subTask, err := item.ToTask()
			if err != nil {
				return eris.Wrap(err, "failed to retrieve task ref")
			}

			if subTask != nil {
				err = runTask(ctx, subTask, tasks, opts, true)
				if err != nil {
					return err
				}
			} else {
				return eris.Errorf("unexpected task command %+v", item)
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	if task.Name != "" {
		rctx.status[task.Name] = statusSucceeded
	}
	return nil
}

// shouldSkip implements the two freshness checks: skip_if_exists
// short-circuits a task when all its marker files already exist, and the
// inputs/outputs comparison skips a task whose outputs are newer than all
// of its inputs.
func shouldSkip(ctx context.Context, task *Task) (bool, error) {
	skipList, err := resolvePatternLists(ctx, task.Base, task.SkipIfExists)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve skip_if_exists list")
	}

	found := 0
	for _, item := range skipList {
		_, err := os.Stat(item)
		if err == nil {
			found++
		} else if !eris.Is(err, os.ErrNotExist) {
			return false, eris.Wrapf(err, "Failed to check %s", item)
		}
	}

	if found > 0 && found == len(skipList) {
		log(ctx).Info().
			Str("task", task.Name).
			Msg("skipped because all skip files exist")

		return true, nil
	}

	var newestInput time.Time
	inputList, err := resolvePatternLists(ctx, task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve inputs")
	}

	outputList, err := resolvePatternLists(ctx, task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve output list")
	}

	for _, item := range inputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "Failed to check input %s", item)
		}

		if info.ModTime().Sub(newestInput) > 0 {
			newestInput = info.ModTime()
		}
	}

	if newestInput.IsZero() {
		return false, nil
	}

	var newestOutput time.Time
	oldestOutput := time.Now()

	for _, item := range outputList {
		info, err := os.Stat(item)
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return false, eris.Wrapf(err, "Failed to check output %s", item)
		}

		if err == nil {
			mt := info.ModTime()
			if mt.Sub(newestOutput) > 0 {
				newestOutput = mt
			}

			if oldestOutput.Sub(mt) > 0 {
				oldestOutput = mt
			}
		}
	}

	if newestOutput.Sub(oldestOutput) > 10*time.Minute {
		log(ctx).Warn().
			Str("task", task.Name).
			Msgf("oldest output is %f minutes older than the newest output", newestOutput.Sub(oldestOutput).Minutes())
	}

	if newestOutput.Sub(newestInput) > 0 {
		log(ctx).Info().
			Str("task", task.Name).
			Msgf("nothing to do (output is %f seconds newer)", newestOutput.Sub(newestInput).Seconds())

		return true, nil
	}

	return false, nil
}
