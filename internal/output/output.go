// Package output provides formatted terminal output for lab command runs.
package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/velumanit/Autotest/internal/remote"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds run statistics for the recap line.
type Stats interface {
	GetOK() int
	GetFailed() int
	GetUnreachable() int
	GetDuration() time.Duration
}

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// RunStart prints the run banner.
func (o *Output) RunStart(command string, hosts int) {
	o.printf("\n%s %s %s\n", o.color(colorBold, "RUN"), command,
		o.color(colorGray, fmt.Sprintf("(%d hosts)", hosts)))
	if o.debug {
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// HostResult prints one host's outcome in a single line, with the error
// detail underneath on failure and captured output in debug mode.
func (o *Output) HostResult(host string, res *remote.Result, err error) {
	var indicator, statusColor, statusText string
	switch {
	case err == nil:
		indicator, statusColor, statusText = "✓", colorGreen, "ok"
	case errors.Is(err, remote.ErrConnectTimeout), errors.Is(err, remote.ErrPermissionDenied):
		indicator, statusColor, statusText = "✗", colorYellow, "UNREACHABLE"
	default:
		indicator, statusColor, statusText = "✗", colorRed, "FAILED"
	}

	duration := ""
	if res != nil {
		duration = " " + o.color(colorGray, fmt.Sprintf("(%.2fs)", res.Duration.Seconds()))
	}
	o.printf("  %s %s %s%s\n", o.color(statusColor, indicator), host,
		o.color(statusColor, statusText), duration)

	if err != nil {
		o.printf("    %s %v\n", o.color(colorGray, "→"), err)
	}

	if o.debug && res != nil {
		o.streamDump("stdout", res.Stdout)
		o.streamDump("stderr", res.Stderr)
	}
}

func (o *Output) streamDump(name, data string) {
	if data == "" {
		return
	}
	o.printf("    %s\n", o.color(colorGray, name+":"))
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		o.printf("      %s\n", line)
	}
}

// RunEnd prints the run summary.
func (o *Output) RunEnd(stats Stats) {
	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	ok := o.color(colorGreen, fmt.Sprintf("ok=%d", stats.GetOK()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))
	unreachable := o.color(colorYellow, fmt.Sprintf("unreachable=%d", stats.GetUnreachable()))

	o.printf("%s %s %s", ok, failed, unreachable)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

// Facts prints gathered host facts as aligned key/value lines.
func (o *Output) Facts(host string, facts map[string]string) {
	o.printf("\n%s %s\n", o.color(colorBold, "FACTS"), host)

	keys := make([]string, 0, len(facts))
	width := 0
	for k := range facts {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		o.printf("  %s %s\n", o.color(colorCyan, fmt.Sprintf("%-*s", width+1, k+":")), facts[k])
	}
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
