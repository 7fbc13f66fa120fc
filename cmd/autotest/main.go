// Package main is the entrypoint for the autotest lab CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/velumanit/Autotest/internal/inventory"
	"github.com/velumanit/Autotest/internal/output"
	"github.com/velumanit/Autotest/internal/remote"
	"github.com/velumanit/Autotest/pkg/facts"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug         bool
	noColor       bool
	inventoryPath string
	parallel      int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autotest",
	Short: "Autotest - remote command execution for lab machines",
	Long: `Autotest drives fleets of lab machines over ssh: one multiplexed
connection per host, synchronous and detached command execution, and
key-based trust bootstrapped from a one-time password.

Hosts come from a YAML inventory file.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with every composed ssh command")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "inventory.yaml", "Inventory file")
	rootCmd.PersistentFlags().IntVarP(&parallel, "parallel", "p", 1, "Number of hosts driven concurrently")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(setupCmd)
}

// newLogger builds the console logger shared by every Host.
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// newOutput builds the result printer.
func newOutput() *output.Output {
	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	out.SetDebug(debug)
	return out
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	return ctx, cancel
}

// loadTargets reads the inventory and applies the host limit.
func loadTargets(limit []string) ([]remote.Target, error) {
	inv, err := inventory.LoadFile(inventoryPath)
	if err != nil {
		return nil, err
	}
	return inv.Select(limit)
}

// forEachTarget drives fn over the targets with bounded parallelism. Each
// host gets its own pooled connection; errors are reported by fn itself.
func forEachTarget(targets []remote.Target, pool *remote.Pool, fn func(h *remote.Host) error) error {
	g := new(errgroup.Group)
	g.SetLimit(parallel)
	for _, target := range targets {
		g.Go(func() error {
			h, err := pool.Get(target)
			if err != nil {
				return err
			}
			return fn(h)
		})
	}
	return g.Wait()
}

// runStats tallies per-host outcomes for the recap line.
type runStats struct {
	mu          sync.Mutex
	ok          int
	failed      int
	unreachable int
	started     time.Time
}

func newRunStats() *runStats {
	return &runStats{started: time.Now()}
}

func (s *runStats) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.ok++
	case errors.Is(err, remote.ErrConnectTimeout), errors.Is(err, remote.ErrPermissionDenied):
		s.unreachable++
	default:
		s.failed++
	}
}

func (s *runStats) bad() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed + s.unreachable
}

func (s *runStats) GetOK() int          { s.mu.Lock(); defer s.mu.Unlock(); return s.ok }
func (s *runStats) GetFailed() int      { s.mu.Lock(); defer s.mu.Unlock(); return s.failed }
func (s *runStats) GetUnreachable() int { s.mu.Lock(); defer s.mu.Unlock(); return s.unreachable }
func (s *runStats) GetDuration() time.Duration {
	return time.Since(s.started)
}

// Run-specific flags
var (
	runTimeout      time.Duration
	runIgnoreStatus bool
	runEnv          []string
	runLimit        []string
)

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a command on inventory hosts",
	Long: `Execute a command on every selected host and print per-host results.

The command may reference ${hostname}, ${user}, ${port} and ${addr},
rendered per host before execution.

Examples:
  autotest run 'uname -a'
  autotest run 'run_test --quick' --env MODE=ci --timeout 30m
  autotest run 'echo ${hostname}' --limit node1.lab -p 8`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", remote.DefaultTimeout, "Wall-clock bound per host")
	runCmd.Flags().BoolVar(&runIgnoreStatus, "ignore-status", false, "Treat non-zero remote exits as success")
	runCmd.Flags().StringSliceVarP(&runEnv, "env", "e", nil, "Environment variables exported on the host (key=value)")
	runCmd.Flags().StringSliceVarP(&runLimit, "limit", "l", nil, "Only these inventory hostnames")
}

func runCommand(cmd *cobra.Command, args []string) error {
	command := args[0]

	env, err := parseEnv(runEnv)
	if err != nil {
		return err
	}
	targets, err := loadTargets(runLimit)
	if err != nil {
		return err
	}

	logger := newLogger()
	out := newOutput()
	pool := remote.NewPool(remote.WithLogger(&logger))
	defer pool.CloseAll()

	ctx, cancel := signalContext()
	defer cancel()

	out.RunStart(command, len(targets))
	stats := newRunStats()

	var mu sync.Mutex
	err = forEachTarget(targets, pool, func(h *remote.Host) error {
		opts := []remote.RunOption{remote.WithTimeout(runTimeout)}
		if runIgnoreStatus {
			opts = append(opts, remote.WithIgnoreStatus())
		}
		if len(env) > 0 {
			opts = append(opts, remote.WithEnv(env))
		}

		rendered := inventory.ExpandCommand(command, h.Target())
		res, runErr := h.Run(ctx, rendered, opts...)

		mu.Lock()
		defer mu.Unlock()
		if rendered != command {
			out.Debug("%s: %s", h.Target().Addr(), rendered)
		}
		stats.record(runErr)
		out.HostResult(h.Target().Addr(), res, runErr)
		return nil
	})
	if err != nil {
		return err
	}

	out.RunEnd(stats)
	if stats.bad() > 0 {
		os.Exit(1)
	}
	return nil
}

// Ping-specific flags
var (
	pingTimeout time.Duration
	pingLimit   []string
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check which inventory hosts answer",
	Args:  cobra.NoArgs,
	RunE:  pingHosts,
}

func init() {
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "t", 10*time.Second, "Per-host ping bound")
	pingCmd.Flags().StringSliceVarP(&pingLimit, "limit", "l", nil, "Only these inventory hostnames")
}

func pingHosts(cmd *cobra.Command, args []string) error {
	targets, err := loadTargets(pingLimit)
	if err != nil {
		return err
	}

	logger := newLogger()
	out := newOutput()
	pool := remote.NewPool(remote.WithLogger(&logger))
	defer pool.CloseAll()

	ctx, cancel := signalContext()
	defer cancel()

	out.Section("PING")
	stats := newRunStats()

	var mu sync.Mutex
	err = forEachTarget(targets, pool, func(h *remote.Host) error {
		pingErr := h.Ping(ctx, pingTimeout)

		mu.Lock()
		defer mu.Unlock()
		stats.record(pingErr)
		out.HostResult(h.Target().Addr(), nil, pingErr)
		if errors.Is(pingErr, remote.ErrPermissionDenied) {
			out.Warn("%s answers but rejects key logins, run setup to install a key", h.Target().Addr())
		}
		return nil
	})
	if err != nil {
		return err
	}

	out.RunEnd(stats)
	if stats.bad() > 0 {
		os.Exit(1)
	}
	return nil
}

// Facts-specific flags
var factsLimit []string

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Gather and print system facts from inventory hosts",
	Args:  cobra.NoArgs,
	RunE:  gatherFacts,
}

func init() {
	factsCmd.Flags().StringSliceVarP(&factsLimit, "limit", "l", nil, "Only these inventory hostnames")
}

func gatherFacts(cmd *cobra.Command, args []string) error {
	targets, err := loadTargets(factsLimit)
	if err != nil {
		return err
	}

	logger := newLogger()
	out := newOutput()
	pool := remote.NewPool(remote.WithLogger(&logger))
	defer pool.CloseAll()

	ctx, cancel := signalContext()
	defer cancel()

	var failed int
	var mu sync.Mutex
	err = forEachTarget(targets, pool, func(h *remote.Host) error {
		gathered, factErr := facts.Gather(ctx, h)

		mu.Lock()
		defer mu.Unlock()
		if factErr != nil {
			failed++
			out.Error("%s: %v", h.Target().Addr(), factErr)
			return nil
		}
		out.Facts(h.Target().Addr(), gathered)
		return nil
	})
	if err != nil {
		return err
	}

	out.Info("gathered facts from %d of %d hosts", len(targets)-failed, len(targets))
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

// Setup-specific flags
var setupLimit []string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install ssh keys on password-carrying inventory hosts",
	Long: `Provision key-based trust on every selected host that carries a
bootstrap password, then verify key logins work.`,
	Args: cobra.NoArgs,
	RunE: setupHosts,
}

func init() {
	setupCmd.Flags().StringSliceVarP(&setupLimit, "limit", "l", nil, "Only these inventory hostnames")
}

func setupHosts(cmd *cobra.Command, args []string) error {
	targets, err := loadTargets(setupLimit)
	if err != nil {
		return err
	}

	logger := newLogger()
	out := newOutput()
	pool := remote.NewPool(remote.WithLogger(&logger))
	defer pool.CloseAll()

	ctx, cancel := signalContext()
	defer cancel()

	out.Section("SETUP")
	stats := newRunStats()

	var mu sync.Mutex
	err = forEachTarget(targets, pool, func(h *remote.Host) error {
		setupErr := h.Setup(ctx)

		mu.Lock()
		defer mu.Unlock()
		stats.record(setupErr)
		out.HostResult(h.Target().Addr(), nil, setupErr)
		return nil
	})
	if err != nil {
		return err
	}

	out.RunEnd(stats)
	if stats.bad() > 0 {
		os.Exit(1)
	}
	return nil
}

// parseEnv turns key=value flags into an environment map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment variable %q (want key=value)", pair)
		}
		env[key] = value
	}
	return env, nil
}
