package remote

import (
	"context"
	"regexp"
)

// GrepPatterns declares the output signatures that decide a RunGrep call.
// Nil fields are not consulted, and no pattern is consulted against an
// empty stream.
type GrepPatterns struct {
	StdoutOK  *regexp.Regexp
	StdoutErr *regexp.Regexp
	StderrOK  *regexp.Regexp
	StderrErr *regexp.Regexp
}

// RunGrep executes command and decides success by matching captured output
// against the declared patterns, for commands whose exit status alone is
// not a reliable signal. The inner run never trusts the status; the checks
// afterwards are ordered and the order is contractual: error patterns
// first (stderr before stdout), then ok patterns (stderr before stdout).
// When nothing matches, a zero exit succeeds and a non-zero exit fails
// unless WithIgnoreStatus was given. Default timeout is 30 seconds.
func (h *Host) RunGrep(ctx context.Context, command string, pat GrepPatterns, opts ...RunOption) (*Result, error) {
	cfg := defaultRunConfig()
	cfg.Timeout = GrepTimeout
	for _, opt := range opts {
		opt(&cfg)
	}

	inner := cfg
	inner.IgnoreStatus = true
	res, err := h.runManaged(ctx, command, inner)
	if err != nil {
		// Transport failures and timeouts pass through already classified.
		return res, err
	}

	switch {
	case pat.StderrErr != nil && res.Stderr != "" && pat.StderrErr.MatchString(res.Stderr):
		return res, &ExecError{
			Err:    ErrPatternMatched,
			Cmd:    res.Command,
			Detail: "stderr matched " + pat.StderrErr.String(),
			Result: res,
		}
	case pat.StdoutErr != nil && res.Stdout != "" && pat.StdoutErr.MatchString(res.Stdout):
		return res, &ExecError{
			Err:    ErrPatternMatched,
			Cmd:    res.Command,
			Detail: "stdout matched " + pat.StdoutErr.String(),
			Result: res,
		}
	case pat.StderrOK != nil && res.Stderr != "" && pat.StderrOK.MatchString(res.Stderr):
		return res, nil
	case pat.StdoutOK != nil && res.Stdout != "" && pat.StdoutOK.MatchString(res.Stdout):
		return res, nil
	}

	if cerr := classify(res, cfg.IgnoreStatus); cerr != nil {
		return res, cerr
	}
	return res, nil
}
