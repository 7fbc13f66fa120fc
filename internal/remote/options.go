package remote

import (
	"fmt"
	"io"
	"regexp"
	"time"
)

// Timeouts applied when the caller does not override them.
const (
	// DefaultTimeout bounds Run; generous because lab jobs routinely take
	// this long.
	DefaultTimeout = 3600 * time.Second

	// ShortTimeout is the fixed bound for RunShort.
	ShortTimeout = 60 * time.Second

	// GrepTimeout is the default bound for RunGrep probes.
	GrepTimeout = 30 * time.Second

	DefaultConnectTimeout = 30 * time.Second
	DefaultAliveInterval  = 300 * time.Second
)

// RunConfig carries the per-invocation session options. A fresh value is
// built for every call; nothing here is persisted.
type RunConfig struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
	AliveInterval  time.Duration
	IgnoreStatus   bool
	Verbose        bool

	// Options are extra transport tokens appended verbatim to the ssh argv.
	Options []string

	// Env is exported into the remote shell before the command runs.
	Env map[string]string

	// Args are appended to the command, each escaped into a single remote
	// shell word.
	Args []string

	// OuterCommand wraps the helper subshell in RunAsync, e.g. a resource
	// limiter prefix. Ignored by the synchronous paths.
	OuterCommand string

	Stdin     io.Reader
	StdoutTee io.Writer
	StderrTee io.Writer
}

// RunOption adjusts a single invocation.
type RunOption func(*RunConfig)

func defaultRunConfig() RunConfig {
	return RunConfig{
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		AliveInterval:  DefaultAliveInterval,
		Verbose:        true,
	}
}

func buildRunConfig(opts []RunOption) RunConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeout bounds the whole call, composition through remote execution.
func WithTimeout(d time.Duration) RunOption {
	return func(c *RunConfig) { c.Timeout = d }
}

// WithConnectTimeout bounds the transport connection attempt.
func WithConnectTimeout(d time.Duration) RunOption {
	return func(c *RunConfig) { c.ConnectTimeout = d }
}

// WithAliveInterval sets the transport keep-alive probe interval.
func WithAliveInterval(d time.Duration) RunOption {
	return func(c *RunConfig) { c.AliveInterval = d }
}

// WithIgnoreStatus makes non-zero remote exit statuses non-fatal; the
// result is returned as-is. Transport-level failures still raise.
func WithIgnoreStatus() RunOption {
	return func(c *RunConfig) { c.IgnoreStatus = true }
}

// WithVerbose toggles debug logging of the composed command.
func WithVerbose(v bool) RunOption {
	return func(c *RunConfig) { c.Verbose = v }
}

// WithOptions appends extra transport tokens to the ssh argv.
func WithOptions(opts ...string) RunOption {
	return func(c *RunConfig) { c.Options = append(c.Options, opts...) }
}

// WithEnv exports variables into the remote shell for this command.
func WithEnv(env map[string]string) RunOption {
	return func(c *RunConfig) { c.Env = env }
}

// WithArgs appends arguments to the remote command, each delivered as one
// literal shell word.
func WithArgs(args ...string) RunOption {
	return func(c *RunConfig) { c.Args = append(c.Args, args...) }
}

// WithOuterCommand sets the shell fragment that wraps the helper subshell
// in RunAsync.
func WithOuterCommand(cmd string) RunOption {
	return func(c *RunConfig) { c.OuterCommand = cmd }
}

// WithStdin feeds the local ssh process stdin.
func WithStdin(r io.Reader) RunOption {
	return func(c *RunConfig) { c.Stdin = r }
}

// WithStdoutTee mirrors remote stdout to w while it is captured.
func WithStdoutTee(w io.Writer) RunOption {
	return func(c *RunConfig) { c.StdoutTee = w }
}

// WithStderrTee mirrors remote stderr to w while it is captured.
func WithStderrTee(w io.Writer) RunOption {
	return func(c *RunConfig) { c.StderrTee = w }
}

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validate rejects option combinations that cannot compose into a sane
// invocation. Runs before any process is spawned.
func (c *RunConfig) validate() error {
	if c.Timeout < 0 {
		return &ExecError{Err: ErrInvalidConfig, Detail: "timeout cannot be negative"}
	}
	if c.ConnectTimeout <= 0 {
		return &ExecError{Err: ErrInvalidConfig, Detail: "connect timeout must be positive"}
	}
	if c.AliveInterval <= 0 {
		return &ExecError{Err: ErrInvalidConfig, Detail: "keep-alive interval must be positive"}
	}
	for name := range c.Env {
		if !envNameRe.MatchString(name) {
			return &ExecError{Err: ErrInvalidConfig, Detail: fmt.Sprintf("invalid environment variable name %q", name)}
		}
	}
	return nil
}
