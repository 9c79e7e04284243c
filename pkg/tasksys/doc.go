// Package tasksys implements the small task runner that maintains the
// documentation site. Tasks are named, ordered lists of shell commands
// executed through mvdan.cc/sh. The six site tasks (clone, submodules,
// build, serve, clean, deploy) are built in; an optional tasks.star file
// can declare additional project tasks.
package tasksys
