package inventory

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/velumanit/Autotest/internal/remote"
)

// placeholderPattern matches ${ name } syntax. Names are lowercase, so
// shell expansions like ${PATH} in the command pass through untouched.
var placeholderPattern = regexp.MustCompile(`\$\{\s*([a-z_]+)\s*\}`)

// ExpandCommand renders a command template for one target, replacing
// ${hostname}, ${user}, ${port} and ${addr}. Unknown placeholders are kept
// as-is.
func ExpandCommand(command string, t remote.Target) string {
	return placeholderPattern.ReplaceAllStringFunc(command, func(match string) string {
		inner := placeholderPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}

		switch strings.TrimSpace(inner[1]) {
		case "hostname":
			return t.Hostname
		case "user":
			return t.User
		case "port":
			return strconv.Itoa(t.Port)
		case "addr":
			return t.Addr()
		default:
			return match
		}
	})
}
