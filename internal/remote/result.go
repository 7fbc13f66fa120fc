package remote

import (
	"fmt"
	"time"

	"github.com/velumanit/Autotest/internal/proc"
)

// Result is the outcome of one remote command.
type Result struct {
	// Command is the composed remote invocation, joined for display.
	Command    string
	ExitStatus int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

func (r *Result) String() string {
	return fmt.Sprintf("command %q exited %d after %s", r.Command, r.ExitStatus, r.Duration.Round(time.Millisecond))
}

// resultFrom converts a finished local process into a remote result.
func resultFrom(command string, pr *proc.Result) *Result {
	return &Result{
		Command:    command,
		ExitStatus: pr.ExitStatus,
		Stdout:     pr.Stdout,
		Stderr:     pr.Stderr,
		Duration:   pr.Duration,
	}
}
