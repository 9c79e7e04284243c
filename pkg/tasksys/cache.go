package tasksys

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
)

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(TaskCmdScript{})
	gob.Register(TaskCmdTaskRef{})
}

// WriteCache stores the option values and the tasks declared by a task
// script so later runs don't have to evaluate the script again.
func WriteCache(file string, options map[string]string, tasks []*Task) error {
	handle, err := os.Create(file)
	if err != nil {
		return err
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(options)
	if err != nil {
		return err
	}

	return encoder.Encode(tasks)
}

func ReadCache(file string) (map[string]string, []*Task, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, err
	}

	var tasks []*Task
	err = decoder.Decode(&tasks)
	if err != nil {
		return options, nil, err
	}

	return options, tasks, nil
}

// CacheIsStale reports whether the cache has to be rebuilt because it's
// missing or older than the task script.
func CacheIsStale(cacheFile, scriptFile string) (bool, error) {
	cacheInfo, err := os.Stat(cacheFile)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return true, nil
		}

		return true, eris.Wrapf(err, "failed to check %s", cacheFile)
	}

	scriptStat, err := os.Stat(scriptFile)
	if err != nil {
		return true, eris.Wrapf(err, "failed to check %s", scriptFile)
	}

	return scriptStat.ModTime().After(cacheInfo.ModTime()), nil
}
