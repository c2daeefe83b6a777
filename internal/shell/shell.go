// Package shell runs command strings through the user's shell.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Default is used when $SHELL is unset.
const Default = "sh"

// ErrSignaled reports a process that was terminated by a signal and so has
// no exit code.
var ErrSignaled = errors.New("process terminated by signal")

// Shell returns $SHELL, or Default when it is empty.
func Shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return Default
}

// Run executes command as `$SHELL -c command` and returns its exit code. A
// non-zero exit is not an error. Spawn failures and signal termination are.
func Run(ctx context.Context, command string) (int, error) {
	cmd := exec.CommandContext(ctx, Shell(), "-c", command)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("spawn %s: %w", Shell(), err)
	}
	code := exitErr.ExitCode()
	if code == -1 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %w", ErrSignaled, ctxErr)
		}
		return 0, fmt.Errorf("%w: %s", ErrSignaled, exitErr.ProcessState)
	}
	return code, nil
}
