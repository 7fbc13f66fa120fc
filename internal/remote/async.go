package remote

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/velumanit/Autotest/internal/proc"
	"github.com/velumanit/Autotest/internal/shell"
)

//go:embed run_helper.sh
var runHelperScript []byte

// AsyncJob is a live handle on a detached remote command. The remote
// process stays coupled to the local ssh wrapper through the helper's
// stdin: killing the wrapper tree drops that stdin and the helper takes
// the remote process group down.
type AsyncJob struct {
	command      string
	ignoreStatus bool
	job          *proc.Job
}

// RunAsync stages the run helper on the target, launches command through
// it detached, and returns immediately with a handle. The command keeps
// running on the target while the handle is alive; use Wait to collect it
// or Kill to abort it.
func (h *Host) RunAsync(ctx context.Context, command string, opts ...RunOption) (*AsyncJob, error) {
	cfg := buildRunConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return h.async.RunAsync(ctx, h, command, cfg)
}

// helperLauncher is the default AsyncExecutable. It decouples the remote
// process from the session with a small staged shell helper so output
// stays retrievable even when the caller only polls later.
type helperLauncher struct{}

var _ AsyncExecutable = helperLauncher{}

func (helperLauncher) RunAsync(ctx context.Context, h *Host, command string, cfg RunConfig) (*AsyncJob, error) {
	h.bootstrap(ctx)
	h.ensureMaster(cfg)

	jobDir := path.Join(h.remoteTmp, "job-"+uuid.NewString())
	helperPath := path.Join(jobDir, "run_helper.sh")

	// Staging runs under its own short bound; the caller's timeout governs
	// the command, not the file pushing.
	stage := defaultRunConfig()
	stage.Timeout = ShortTimeout
	stage.ConnectTimeout = cfg.ConnectTimeout
	stage.AliveInterval = cfg.AliveInterval
	stage.Verbose = cfg.Verbose

	if _, err := h.rawRun(ctx, "mkdir -p "+shell.Quote(jobDir), stage); err != nil {
		return nil, fmt.Errorf("failed to create remote helper dir: %w", err)
	}
	if err := h.stageHelper(ctx, helperPath, stage); err != nil {
		return nil, err
	}

	// The helper gets the command (with its escaped args) as one single-
	// quoted word; exports stay outside so the environment reaches the
	// helper's shell.
	wrapped := fmt.Sprintf("(sh %s %s)", shell.Quote(helperPath), shell.Quote(commandWithArgs(command, cfg.Args)))
	if cfg.OuterCommand != "" {
		wrapped = cfg.OuterCommand + " " + wrapped
	}
	element := withExports(wrapped, cfg.Env)

	args := sshArgs(h.sshBin, h.target, cfg, h.controlPath(), element)
	display := strings.Join(args, " ")
	if cfg.Verbose {
		h.logger.Debug().Str("host", h.target.Addr()).Str("cmd", display).Msg("launching detached remote command")
	}

	job, err := h.runner.Start(args, proc.Options{
		PipeStdin: true,
		StdoutTee: cfg.StdoutTee,
		StderrTee: cfg.StderrTee,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch detached command: %w", err)
	}

	return &AsyncJob{command: display, ignoreStatus: cfg.IgnoreStatus, job: job}, nil
}

// stageHelper pushes the embedded helper script to its remote path.
func (h *Host) stageHelper(ctx context.Context, helperPath string, cfg RunConfig) error {
	local, err := os.CreateTemp("", "run-helper-*.sh")
	if err != nil {
		return fmt.Errorf("failed to write helper script: %w", err)
	}
	defer os.Remove(local.Name())

	if _, err := local.Write(runHelperScript); err != nil {
		local.Close()
		return fmt.Errorf("failed to write helper script: %w", err)
	}
	if err := local.Close(); err != nil {
		return fmt.Errorf("failed to write helper script: %w", err)
	}

	if err := h.sendFile(ctx, local.Name(), helperPath, cfg); err != nil {
		return fmt.Errorf("failed to stage helper script: %w", err)
	}
	return nil
}

// Stdin is the pipe feeding the remote command's stdin, for interactive
// control. Closing it signals EOF through the session.
func (j *AsyncJob) Stdin() io.WriteCloser {
	return j.job.Stdin
}

// Running reports whether the local wrapper is still alive.
func (j *AsyncJob) Running() bool {
	return j.job.Running()
}

// Stdout snapshots the output captured so far. Safe while running.
func (j *AsyncJob) Stdout() string {
	return j.job.Stdout()
}

// Stderr snapshots the error output captured so far. Safe while running.
func (j *AsyncJob) Stderr() string {
	return j.job.Stderr()
}

// Wait blocks until the remote command finishes or ctx expires. Expiry
// does not kill the job; callers poll again or Kill explicitly. On
// completion the outcome is classified like Run.
func (j *AsyncJob) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.job.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pr, err := j.job.Wait(context.Background())
	if err != nil {
		res := resultFrom(j.command, pr)
		return res, fmt.Errorf("failed to collect detached command: %w", err)
	}

	res := resultFrom(j.command, pr)
	if cerr := classify(res, j.ignoreStatus); cerr != nil {
		return res, cerr
	}
	return res, nil
}

// Kill force-terminates the local wrapper's whole process tree, which
// takes the remote command down through the helper. Safe to call more
// than once and after natural completion.
func (j *AsyncJob) Kill() {
	j.job.Kill()
}
