package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Failure kind sentinels. Callers switch on these with errors.Is; the
// concrete error is always an *ExecError carrying the captured result.
var (
	// ErrTimeout means the wall-clock bound on the whole call elapsed and
	// the local process tree was killed. The remote status is unknown.
	ErrTimeout = errors.New("command timed out")

	// ErrConnectTimeout means the ssh client itself reported a
	// connection-level timeout. The remote command never started.
	ErrConnectTimeout = errors.New("ssh connection timed out")

	// ErrPermissionDenied means the login was rejected.
	ErrPermissionDenied = errors.New("ssh permission denied")

	// ErrCommandFailed means the command reached the remote shell and
	// exited non-zero, or ssh failed without a recognized transport marker.
	ErrCommandFailed = errors.New("remote command failed")

	// ErrPatternMatched means captured output matched a caller-declared
	// failure signature, regardless of exit status.
	ErrPatternMatched = errors.New("output matched error pattern")

	// ErrInvalidConfig means the target or session options were malformed.
	// Raised before any process is spawned.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ExecError is the uniform failure type for remote execution. Err holds the
// failure kind sentinel and Result whatever was captured before failing.
type ExecError struct {
	Err    error
	Cmd    string
	Detail string
	Result *Result
}

func (e *ExecError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cmd != "" {
		fmt.Fprintf(&b, " (command: %s)", e.Cmd)
	}
	if e.Result != nil && e.Result.ExitStatus != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.Result.ExitStatus)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// connectTimedOutRe matches the ssh client's connection timeout report.
// The trailing carriage return appears when ssh runs under a pty.
var connectTimedOutRe = regexp.MustCompile(`(?m)^ssh: connect to host .* port .*: Connection timed out\r?$`)

// The ssh client appends the offered method list to the rejection, as in
// "Permission denied (publickey,password).", so the marker stops before it.
const permissionDeniedMarker = "Permission denied"

// classify maps a finished invocation onto the error taxonomy. Exit 255 is
// the ssh client's own failure channel: its two markers are checked first,
// timeout before permission, and fire regardless of ignoreStatus. Anything
// else non-zero is a remote execution failure unless ignoreStatus is set.
func classify(res *Result, ignoreStatus bool) error {
	switch {
	case res.ExitStatus == 255 && connectTimedOutRe.MatchString(res.Stderr):
		return &ExecError{Err: ErrConnectTimeout, Cmd: res.Command, Result: res}
	case res.ExitStatus == 255 && strings.Contains(res.Stderr, permissionDeniedMarker):
		return &ExecError{Err: ErrPermissionDenied, Cmd: res.Command, Result: res}
	case res.ExitStatus != 0 && !ignoreStatus:
		return &ExecError{Err: ErrCommandFailed, Cmd: res.Command, Result: res}
	default:
		return nil
	}
}
