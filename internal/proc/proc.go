// Package proc runs local subprocesses with captured output, wall-clock
// timeouts and whole-process-group teardown.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Result holds everything captured from a finished process.
type Result struct {
	Args       []string
	ExitStatus int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// Options control how a process is spawned.
type Options struct {
	// Timeout bounds the whole Run call. Zero means no bound.
	Timeout time.Duration

	// Stdin is connected to the process when non-nil. Ignored when
	// PipeStdin is set.
	Stdin io.Reader

	// PipeStdin attaches a pipe to the process stdin and keeps the write
	// end on the Job so the caller can hold it open.
	PipeStdin bool

	// StdoutTee and StderrTee receive a live copy of the corresponding
	// stream in addition to the captured buffers.
	StdoutTee io.Writer
	StderrTee io.Writer
}

// TimeoutError reports that a process exceeded its wall-clock bound and its
// process group was killed.
type TimeoutError struct {
	Args  []string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Limit, strings.Join(e.Args, " "))
}

// Job is a process started in its own process group.
type Job struct {
	// Stdin is the write end of the stdin pipe, nil unless Options.PipeStdin
	// was set. Closing it signals EOF to the process.
	Stdin io.WriteCloser

	cmd     *exec.Cmd
	args    []string
	started time.Time

	stdout syncBuffer
	stderr syncBuffer

	done     chan struct{}
	waitErr  error
	killOnce sync.Once
}

// syncBuffer guards a capture buffer so output can be snapshotted while
// the process is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Start launches a process in its own process group. The process is not
// tied to any context: it survives the caller and must be ended with Kill
// or collected with Wait.
func Start(args []string, opts Options) (*Job, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command given")
	}

	j := &Job{args: args, done: make(chan struct{})}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = teeTo(&j.stdout, opts.StdoutTee)
	cmd.Stderr = teeTo(&j.stderr, opts.StderrTee)

	if opts.PipeStdin {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
		}
		j.Stdin = pipe
	} else if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	j.started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	j.cmd = cmd

	go func() {
		j.waitErr = cmd.Wait()
		close(j.done)
	}()

	return j, nil
}

// Run executes a command to completion, enforcing opts.Timeout as a
// wall-clock bound on the whole call. On expiry the process group is killed
// and the partial result is returned together with a *TimeoutError.
func Run(ctx context.Context, args []string, opts Options) (*Result, error) {
	job, err := Start(args, opts)
	if err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-job.done:
		return job.collect()
	case <-expired:
		job.Kill()
		<-job.done
		return job.result(), &TimeoutError{Args: args, Limit: opts.Timeout}
	case <-ctx.Done():
		job.Kill()
		<-job.done
		return job.result(), ctx.Err()
	}
}

// Pid returns the process id.
func (j *Job) Pid() int {
	return j.cmd.Process.Pid
}

// Stdout snapshots the output captured so far. Safe while running.
func (j *Job) Stdout() string {
	return j.stdout.String()
}

// Stderr snapshots the error output captured so far. Safe while running.
func (j *Job) Stderr() string {
	return j.stderr.String()
}

// Running reports whether the process has not exited yet.
func (j *Job) Running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// Done is closed when the process exits. It lets callers wait without
// arming the kill-on-cancel behavior of Wait.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the process exits or the context is done. On context
// expiry the process group is killed and the context error is returned with
// the partial result.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
		return j.collect()
	case <-ctx.Done():
		j.Kill()
		<-j.done
		return j.result(), ctx.Err()
	}
}

// Kill force-terminates the process and everything in its process group.
// Safe to call multiple times and after the process has exited.
func (j *Job) Kill() {
	j.killOnce.Do(func() {
		if j.Stdin != nil {
			_ = j.Stdin.Close()
		}
		select {
		case <-j.done:
			// Already gone, nothing to signal.
		default:
			// Negative pid addresses the whole group.
			_ = syscall.Kill(-j.cmd.Process.Pid, syscall.SIGKILL)
		}
	})
}

// collect builds the final result, surfacing start or io failures that are
// not plain non-zero exits.
func (j *Job) collect() (*Result, error) {
	res := j.result()
	if j.waitErr != nil {
		if _, ok := j.waitErr.(*exec.ExitError); !ok {
			return res, fmt.Errorf("failed to run %s: %w", j.args[0], j.waitErr)
		}
	}
	return res, nil
}

// result snapshots the captured output. Only valid once the process has
// exited.
func (j *Job) result() *Result {
	res := &Result{
		Args:     j.args,
		Stdout:   j.stdout.String(),
		Stderr:   j.stderr.String(),
		Duration: time.Since(j.started),
	}
	if exitErr, ok := j.waitErr.(*exec.ExitError); ok {
		res.ExitStatus = exitErr.ExitCode()
	} else if j.waitErr != nil {
		res.ExitStatus = -1
	}
	return res
}

func teeTo(buf *syncBuffer, tee io.Writer) io.Writer {
	if tee == nil {
		return buf
	}
	return io.MultiWriter(buf, tee)
}
