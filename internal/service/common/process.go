//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/airmouse/internal/logger"
)

// ErrAlreadyRunning is returned when another instance of the executable is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// FindProcesses returns the PIDs of processes running the named executable,
// excluding the current process.
func FindProcesses(name string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	return matchProcesses(processList, name, os.Getpid()), nil
}

// EnsureSingleInstance fails when the current executable already runs
// under another PID.
func EnsureSingleInstance(ctx context.Context) error {
	name := ExecutableName()

	pids, err := FindProcesses(name)
	if err != nil {
		// The guard is advisory; failing to list processes must not block startup.
		logger.WarnKV(ctx, "Unable to check for running instances", "error", err)
		return nil
	}

	if len(pids) > 0 {
		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, pids[0])
	}

	return nil
}

// ExecutableName returns the base name of the running executable.
func ExecutableName() string {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	return filepath.Base(path)
}

func matchProcesses(processList []ps.Process, name string, self int) []int {
	var pids []int

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if !sameExecutable(process.Executable(), name) {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids
}

// sameExecutable compares names, tolerating the 15-byte truncation of
// process names on Linux.
func sameExecutable(processName, name string) bool {
	const linuxCommLength = 15

	if processName == name {
		return true
	}

	return len(processName) == linuxCommLength && strings.HasPrefix(name, processName)
}
