// Package shell provides quoting helpers for commands executed through a
// remote POSIX shell.
package shell

import (
	"sort"
	"strings"
)

// escaper rewrites the characters that a double-quoted shell context
// interprets. The replacer works in a single pass, so inserted backslashes
// are never themselves rewritten.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`$`, `\$`,
	`"`, `\"`,
	"`", "\\`",
)

// Escape neutralizes a string for embedding inside a double-quoted word.
// The remote shell strips the backslashes and receives the original text
// as a single literal argument.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Quote wraps a string in single quotes for safe use as one shell word.
// Embedded single quotes are closed, escaped and reopened.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteArg formats a caller-supplied argument for appending to a remote
// command line: double-quoted with its contents escaped, so the remote
// shell sees exactly one word.
func QuoteArg(s string) string {
	return `"` + Escape(s) + `"`
}

// Exports serializes environment variables as a single export statement
// suitable for prefixing to a remote command. Returns the empty string for
// an empty map. Keys are emitted in sorted order so composed commands are
// deterministic.
func Exports(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("export")
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(Escape(env[k]))
		b.WriteString(`"`)
	}
	b.WriteString(";")
	return b.String()
}
