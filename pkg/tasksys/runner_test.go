package tasksys

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/interp"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

// execRecorder stands in for the real executor and records every command
// the runner hands to it.
type execRecorder struct {
	calls  [][]string
	failAt int
	status uint8
}

func (r *execRecorder) handler(ctx context.Context, args []string) error {
	r.calls = append(r.calls, args)
	if r.failAt > 0 && len(r.calls) == r.failAt {
		return interp.NewExitStatus(r.status)
	}

	return nil
}

func testTask(base, name string, cmds ...string) *Task {
	task := &Task{
		Name: name,
		Base: base,
	}

	for idx, cmd := range cmds {
		task.Cmds = append(task.Cmds, TaskCmdScript{TaskName: name, Index: idx, Content: cmd})
	}

	return task
}

func TestRunTaskExecutesCommandsInOrder(t *testing.T) {
	base := t.TempDir()
	task := testTask(base, "multi", "alpha one", "beta two", "gamma")
	tasks, err := NewTaskList([]*Task{task})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "multi", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, []string{"alpha", "one"}, rec.calls[0])
	assert.Equal(t, []string{"beta", "two"}, rec.calls[1])
	assert.Equal(t, []string{"gamma"}, rec.calls[2])
}

func TestRunTaskUnknownName(t *testing.T) {
	base := t.TempDir()
	tasks, err := NewTaskList([]*Task{testTask(base, "known", "noop")})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "bogus", tasks, RunOpts{Exec: rec.handler})
	require.Error(t, err)

	var unknownErr *UnknownTaskError
	require.True(t, eris.As(err, &unknownErr))
	assert.Equal(t, "bogus", unknownErr.Name)
	assert.Empty(t, rec.calls)
}

func TestRunTaskStopsAtFirstFailure(t *testing.T) {
	base := t.TempDir()
	task := testTask(base, "fragile", "alpha", "beta", "gamma", "delta")
	tasks, err := NewTaskList([]*Task{task})
	require.NoError(t, err)

	rec := &execRecorder{failAt: 2, status: 3}
	err = RunTask(testContext(), base, "fragile", tasks, RunOpts{Exec: rec.handler})
	require.Error(t, err)

	var cmdErr *CommandFailedError
	require.True(t, eris.As(err, &cmdErr))
	assert.Equal(t, "fragile", cmdErr.Task)
	assert.Contains(t, cmdErr.Command, "beta")
	assert.Equal(t, 3, cmdErr.ExitStatus)

	// the commands after the failing one were never handed to the executor
	require.Len(t, rec.calls, 2)
	assert.Equal(t, []string{"beta"}, rec.calls[1])
}

func TestDryRunNeverExecutes(t *testing.T) {
	base := t.TempDir()
	task := testTask(base, "dry", "alpha", "beta")
	tasks, err := NewTaskList([]*Task{task})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "dry", tasks, RunOpts{DryRun: true, Exec: rec.handler})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
}

func TestRunTaskRunsDepsFirst(t *testing.T) {
	base := t.TempDir()
	dep := testTask(base, "prepare", "prepare-things")
	main := testTask(base, "main", "main-things")
	main.Deps = []string{"prepare"}

	tasks, err := NewTaskList([]*Task{dep, main})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "main", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, []string{"prepare-things"}, rec.calls[0])
	assert.Equal(t, []string{"main-things"}, rec.calls[1])
}

func TestRunTaskDetectsCycles(t *testing.T) {
	base := t.TempDir()
	a := testTask(base, "a", "noop-a")
	a.Deps = []string{"b"}
	b := testTask(base, "b", "noop-b")
	b.Deps = []string{"a"}

	tasks, err := NewTaskList([]*Task{a, b})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "a", tasks, RunOpts{Exec: rec.handler})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursively")
}

func TestRunTaskRefRunsOnlyOnce(t *testing.T) {
	base := t.TempDir()
	sub := testTask(base, "sub", "sub-things")
	main := &Task{
		Name: "main",
		Base: base,
		Cmds: []TaskCmd{
			TaskCmdTaskRef{Task: sub},
			TaskCmdTaskRef{Task: sub},
		},
	}

	tasks, err := NewTaskList([]*Task{sub, main})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "main", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestSkipIfExists(t *testing.T) {
	base := t.TempDir()
	marker := filepath.Join(base, "done.txt")
	require.NoError(t, ioutil.WriteFile(marker, []byte("x"), 0660))

	task := testTask(base, "guarded", "expensive-things")
	task.SkipIfExists = []string{"done.txt"}

	tasks, err := NewTaskList([]*Task{task})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "guarded", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)

	// force overrides the skip check
	err = RunTask(testContext(), base, "guarded", tasks, RunOpts{Force: true, Exec: rec.handler})
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestFreshOutputsSkipTask(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "input.md")
	output := filepath.Join(base, "output.html")
	require.NoError(t, ioutil.WriteFile(input, []byte("in"), 0660))
	require.NoError(t, ioutil.WriteFile(output, []byte("out"), 0660))

	// make the output strictly newer than the input
	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(input, older, older))

	task := testTask(base, "render", "render-things")
	task.Inputs = []string{"input.md"}
	task.Outputs = []string{"output.html"}

	tasks, err := NewTaskList([]*Task{task})
	require.NoError(t, err)

	rec := &execRecorder{}
	err = RunTask(testContext(), base, "render", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)

	// and the other way around: stale output means the task runs
	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(input, newer, newer))

	err = RunTask(testContext(), base, "render", tasks, RunOpts{Exec: rec.handler})
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestNewTaskListRejectsDuplicates(t *testing.T) {
	base := t.TempDir()
	_, err := NewTaskList([]*Task{
		testTask(base, "twice", "noop"),
		testTask(base, "twice", "noop"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}
