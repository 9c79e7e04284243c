package tasksys

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// TaskCmd is a single step in a task. It's either a piece of shell script
// or a reference to another task.
type TaskCmd interface {
	ToTask() (*Task, error)
	ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error)
}

type TaskCmdScript struct {
	TaskName string
	Content  string
	Index    int
}

func (s TaskCmdScript) ToTask() (*Task, error) {
	return nil, nil
}

func (s TaskCmdScript) ToShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(s.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", s.TaskName, s.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return result.Stmts, nil
}

type TaskCmdTaskRef struct {
	Task *Task
}

func (t TaskCmdTaskRef) ToTask() (*Task, error) {
	return t.Task, nil
}

func (t TaskCmdTaskRef) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

// Task is a named, ordered list of shell commands. The name is unique within
// a TaskList. SkipIfExists and Inputs/Outputs only decide whether the task
// still has to run; they are not enforced beyond that.
type Task struct {
	Name         string
	Desc         string
	Base         string
	Env          map[string]string
	Deps         []string
	SkipIfExists []string
	Inputs       []string
	Outputs      []string
	Cmds         []TaskCmd
	Hidden       bool
}

// TaskList maps task names to their tasks
type TaskList map[string]*Task

// NewTaskList builds the lookup map for the given tasks. The tasks keep
// their declaration order in the passed slice; the map only serves name
// lookups. Duplicate names are an error.
func NewTaskList(tasks []*Task) (TaskList, error) {
	list := make(TaskList, len(tasks))
	for _, task := range tasks {
		if _, present := list[task.Name]; present {
			return nil, eris.Errorf("task %s was declared twice", task.Name)
		}

		list[task.Name] = task
	}

	return list, nil
}

// ScriptOption is an option declared by a task script through option()
type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Task so task scripts can pass tasks around
// and embed them in the cmds list of other tasks.

func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Name, t.Desc)
}

func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

// StarPath is a filesystem path inside a task script (built by resolve_path)
type StarPath string

func (p StarPath) String() string {
	return starlark.String(p).String()
}

func (p StarPath) Type() string {
	return "path"
}

func (p StarPath) Freeze() {}

func (p StarPath) Truth() starlark.Bool {
	return p != ""
}

func (p StarPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p StarPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(StarPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}
