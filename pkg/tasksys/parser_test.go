package tasksys

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, root, content string) string {
	t.Helper()

	scriptPath := filepath.Join(root, "tasks.star")
	require.NoError(t, ioutil.WriteFile(scriptPath, []byte(content), 0660))
	return scriptPath
}

const simpleScript = `flavor = option("flavor", default="vanilla", help="cake flavor")

def configure():
    lint = task(
        name="lint_docs",
        desc="lint the documentation sources",
        cmds=["echo lint " + flavor],
    )
    task(
        name="render_extras",
        desc="render the extra pages",
        deps=["lint_docs"],
        cmds=[("echo", "render")],
    )
`

func TestRunScriptCollectsTasksInOrder(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, simpleScript)

	tasks, options, err := RunScript(testContext(), scriptPath, root, nil, true)
	require.NoError(t, err)

	require.Len(t, tasks, 2)
	assert.Equal(t, "lint_docs", tasks[0].Name)
	assert.Equal(t, "render_extras", tasks[1].Name)
	assert.Equal(t, []string{"lint_docs"}, tasks[1].Deps)

	lint := tasks[0].Cmds[0].(TaskCmdScript)
	assert.Equal(t, "echo lint vanilla", lint.Content)

	render := tasks[1].Cmds[0].(TaskCmdScript)
	assert.Equal(t, "echo render", render.Content)

	require.Contains(t, options, "flavor")
	assert.Equal(t, "vanilla", options["flavor"].Default())
	assert.Equal(t, "cake flavor", options["flavor"].Help)
}

func TestRunScriptOptionOverride(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, simpleScript)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{"flavor": "chocolate"}, true)
	require.NoError(t, err)

	require.Len(t, tasks, 2)
	lint := tasks[0].Cmds[0].(TaskCmdScript)
	assert.Equal(t, "echo lint chocolate", lint.Content)
}

func TestRunScriptRejectsReservedNames(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    task(name="build", cmds=["echo nope"])
`)

	_, _, err := RunScript(testContext(), scriptPath, root, nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestRunScriptRequiresConfigure(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `x = 1`)

	_, _, err := RunScript(testContext(), scriptPath, root, nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure")
}

func TestRunScriptHiddenTasksAreNotListed(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    helper = task(cmds=["echo helper"])
    task(
        name="outer_task",
        cmds=[helper, "echo outer"],
    )
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, nil, true)
	require.NoError(t, err)

	// the unnamed helper is hidden, only the outer task is collected
	require.Len(t, tasks, 1)
	assert.Equal(t, "outer_task", tasks[0].Name)

	ref, ok := tasks[0].Cmds[0].(TaskCmdTaskRef)
	require.True(t, ok)
	assert.True(t, ref.Task.Hidden)
}

func TestRunScriptTaskBaseIsNormalized(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    task(
        name="in_subdir",
        base="//docs",
        cmds=["echo hi"],
    )
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, nil, true)
	require.NoError(t, err)

	require.Len(t, tasks, 1)
	expected, err := filepath.Abs(filepath.Join(root, "docs"))
	require.NoError(t, err)
	assert.Equal(t, expected, tasks[0].Base)
}
