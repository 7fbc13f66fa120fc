package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/velumanit/Autotest/internal/proc"
)

// bootstrapProbeTimeout bounds the reachability pings around key
// installation.
const bootstrapProbeTimeout = 10 * time.Second

// Host drives one remote machine through the external ssh binary. Methods
// are safe for concurrent use; commands issued concurrently share the
// master session once it is up.
type Host struct {
	target    Target
	logger    *zerolog.Logger
	sshBin    string
	scpBin    string
	remoteTmp string
	runner    ProcessRunner
	async     AsyncExecutable
	keys      KeyInstaller

	bootstrapOnce sync.Once

	mu     sync.Mutex
	master *master
}

// Option configures a Host at construction time.
type Option func(*Host)

// WithLogger routes the host's debug and warning output.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithSSHBinary overrides the ssh binary resolved from PATH.
func WithSSHBinary(path string) Option {
	return func(h *Host) { h.sshBin = path }
}

// WithSCPBinary overrides the scp binary resolved from PATH.
func WithSCPBinary(path string) Option {
	return func(h *Host) { h.scpBin = path }
}

// WithRemoteTempDir sets where per-job helper directories are created on
// the target.
func WithRemoteTempDir(dir string) Option {
	return func(h *Host) { h.remoteTmp = dir }
}

// WithProcessRunner injects the local process layer.
func WithProcessRunner(r ProcessRunner) Option {
	return func(h *Host) { h.runner = r }
}

// WithAsyncExecutor injects the detached-launch strategy.
func WithAsyncExecutor(a AsyncExecutable) Option {
	return func(h *Host) { h.async = a }
}

// WithKeyInstaller injects the trust bootstrap strategy.
func WithKeyInstaller(k KeyInstaller) Option {
	return func(h *Host) { h.keys = k }
}

// New validates the target and returns a Host. No network activity happens
// until the first command.
func New(target Target, opts ...Option) (*Host, error) {
	t := target.WithDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	nop := zerolog.Nop()
	h := &Host{
		target:    t,
		logger:    &nop,
		sshBin:    "ssh",
		scpBin:    "scp",
		remoteTmp: "/tmp",
		runner:    procRunner{},
		async:     helperLauncher{},
		keys:      keyInstaller{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Target returns the endpoint this host drives.
func (h *Host) Target() Target {
	return h.target
}

func (h *Host) String() string {
	return "ssh://" + h.target.Addr()
}

// Run executes command on the host and blocks until it finishes or the
// wall-clock timeout elapses. A non-zero remote exit is an error unless
// WithIgnoreStatus is given; whenever output was captured the Result is
// returned alongside the error.
func (h *Host) Run(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	return h.runManaged(ctx, command, buildRunConfig(opts))
}

// RunShort is Run with the timeout fixed at 60 seconds, for quick commands
// whose hanging indicates a dead host rather than a busy one.
func (h *Host) RunShort(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	cfg := buildRunConfig(opts)
	cfg.Timeout = ShortTimeout
	return h.runManaged(ctx, command, cfg)
}

// runManaged is the full path: validation, trust bootstrap, master session,
// then the invocation itself.
func (h *Host) runManaged(ctx context.Context, command string, cfg RunConfig) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	h.bootstrap(ctx)
	h.ensureMaster(cfg)
	return h.rawRun(ctx, command, cfg)
}

// rawRun composes and executes one invocation. It assumes validation has
// run and does not touch bootstrap or master state beyond reading the
// current control socket.
func (h *Host) rawRun(ctx context.Context, command string, cfg RunConfig) (*Result, error) {
	remoteCmd := remoteCommand(command, cfg)
	args := sshArgs(h.sshBin, h.target, cfg, h.controlPath(), remoteCmd)
	display := strings.Join(args, " ")
	if cfg.Verbose {
		h.logger.Debug().Str("host", h.target.Addr()).Str("cmd", display).Msg("running remote command")
	}

	pr, err := h.runner.Run(ctx, args, proc.Options{
		Timeout:   cfg.Timeout,
		Stdin:     cfg.Stdin,
		StdoutTee: cfg.StdoutTee,
		StderrTee: cfg.StderrTee,
	})
	if err != nil {
		var timeoutErr *proc.TimeoutError
		switch {
		case errors.As(err, &timeoutErr):
			res := resultFrom(display, pr)
			return res, &ExecError{
				Err:    ErrTimeout,
				Cmd:    display,
				Detail: fmt.Sprintf("no result in %s", cfg.Timeout),
				Result: res,
			}
		case pr != nil:
			res := resultFrom(display, pr)
			return res, fmt.Errorf("failed to run ssh: %w", err)
		default:
			return nil, fmt.Errorf("failed to run ssh: %w", err)
		}
	}

	res := resultFrom(display, pr)
	if cerr := classify(res, cfg.IgnoreStatus); cerr != nil {
		return res, cerr
	}
	return res, nil
}

// Ping checks reachability by running true under a short bound. The error,
// if any, carries the transport classification, so callers can tell a
// connect timeout from a permission denial.
func (h *Host) Ping(ctx context.Context, timeout time.Duration) error {
	cfg := defaultRunConfig()
	cfg.Timeout = timeout
	cfg.Verbose = false
	if err := cfg.validate(); err != nil {
		return err
	}
	h.ensureMaster(cfg)
	_, err := h.rawRun(ctx, "true", cfg)
	return err
}

// WaitUp polls until the host answers a ping, reporting whether it came up
// within timeout.
func (h *Host) WaitUp(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if err := h.Ping(ctx, bootstrapProbeTimeout); err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

// WaitDown polls until the host stops answering pings, reporting whether
// it went down within timeout.
func (h *Host) WaitDown(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if err := h.Ping(ctx, bootstrapProbeTimeout); err != nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

// Setup provisions key-based trust on the host and verifies key logins
// work afterwards. Unlike the implicit bootstrap on first Run, failures
// are returned to the caller. Hosts that already accept the key are left
// untouched.
func (h *Host) Setup(ctx context.Context) error {
	err := h.Ping(ctx, bootstrapProbeTimeout)
	if err == nil {
		h.bootstrapOnce.Do(func() {})
		return nil
	}
	if !errors.Is(err, ErrPermissionDenied) {
		return err
	}
	if h.target.Password == "" {
		return fmt.Errorf("host rejects key logins and target has no bootstrap password: %w", err)
	}

	h.logger.Info().Str("host", h.target.Addr()).Msg("installing ssh key with bootstrap password")
	if err := h.keys.Install(ctx, h.target); err != nil {
		return fmt.Errorf("failed to install ssh key: %w", err)
	}
	if err := h.Ping(ctx, bootstrapProbeTimeout); err != nil {
		return fmt.Errorf("host still rejects logins after key install: %w", err)
	}
	h.bootstrapOnce.Do(func() {})
	return nil
}

// bootstrap installs key trust using the target password the first time
// the host is driven. Best effort: the command that follows surfaces any
// remaining authentication failure to the caller.
func (h *Host) bootstrap(ctx context.Context) {
	h.bootstrapOnce.Do(func() {
		if h.target.Password == "" {
			return
		}

		err := h.Ping(ctx, bootstrapProbeTimeout)
		if err == nil || !errors.Is(err, ErrPermissionDenied) {
			return
		}

		h.logger.Info().Str("host", h.target.Addr()).Msg("key login rejected, installing key with bootstrap password")
		if err := h.keys.Install(ctx, h.target); err != nil {
			h.logger.Warn().Err(err).Str("host", h.target.Addr()).Msg("ssh key install failed")
			return
		}
		if err := h.Ping(ctx, bootstrapProbeTimeout); err != nil {
			h.logger.Warn().Err(err).Str("host", h.target.Addr()).Msg("host still rejects logins after key install")
		}
	})
}
