package tasksys

import "fmt"

// UnknownTaskError is returned when a run is requested for a name that
// isn't registered in the task list.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %s not found", e.Name)
}

// CommandFailedError is returned when a task command exits with a non-zero
// status. The remaining commands of the task are not run.
type CommandFailedError struct {
	Task       string
	Command    string
	ExitStatus int
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("task %s: command %q exited with status %d", e.Task, e.Command, e.ExitStatus)
}
