package remote

import (
	"context"

	"github.com/velumanit/Autotest/internal/proc"
)

// ProcessRunner abstracts the local process layer carrying the ssh and scp
// invocations, so tests can substitute transports. The default
// implementation spawns real processes.
type ProcessRunner interface {
	Run(ctx context.Context, args []string, opts proc.Options) (*proc.Result, error)
	Start(args []string, opts proc.Options) (*proc.Job, error)
}

// AsyncExecutable is the capability of launching detached remote commands.
// A Host composes one in; replace it to change the staging strategy.
type AsyncExecutable interface {
	RunAsync(ctx context.Context, h *Host, command string, cfg RunConfig) (*AsyncJob, error)
}

// KeyInstaller provisions key trust on a target from its bootstrap
// password.
type KeyInstaller interface {
	Install(ctx context.Context, t Target) error
}

type procRunner struct{}

func (procRunner) Run(ctx context.Context, args []string, opts proc.Options) (*proc.Result, error) {
	return proc.Run(ctx, args, opts)
}

func (procRunner) Start(args []string, opts proc.Options) (*proc.Job, error) {
	return proc.Start(args, opts)
}

var _ ProcessRunner = procRunner{}
