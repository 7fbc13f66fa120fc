package shell

import (
	"os/exec"
	"strings"
	"testing"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "double quote", in: `say "hi"`, want: `say \"hi\"`},
		{name: "dollar", in: "echo $HOME", want: `echo \$HOME`},
		{name: "backtick", in: "a `b` c", want: "a \\`b\\` c"},
		{name: "backslash", in: `a\b`, want: `a\\b`},
		{name: "backslash before dollar", in: `\$`, want: `\\\$`},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.in); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "'hello'"},
		{name: "spaces", in: "hello world", want: "'hello world'"},
		{name: "single quote", in: "it's", want: `'it'"'"'s'`},
		{name: "dollar untouched", in: "$HOME", want: "'$HOME'"},
		{name: "empty", in: "", want: "''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quote(tt.in); got != tt.want {
				t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExports(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "empty", env: nil, want: ""},
		{name: "single", env: map[string]string{"FOO": "bar"}, want: `export FOO="bar";`},
		{
			name: "sorted keys",
			env:  map[string]string{"ZED": "1", "ALPHA": "2"},
			want: `export ALPHA="2" ZED="1";`,
		},
		{
			name: "value escaped",
			env:  map[string]string{"MSG": `say "hi" for $1`},
			want: `export MSG="say \"hi\" for \$1";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exports(tt.env); got != tt.want {
				t.Errorf("Exports(%v) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

// Run each quoted form through a real shell and check the word survives as
// a single literal argument, the way a remote sshd would parse it.
func TestQuotingRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping shell round-trip in short mode")
	}

	inputs := []string{
		`plain`,
		`two words`,
		`he said "hi"`,
		`$HOME and ` + "`pwd`",
		`mixed "quotes" and 'apostrophes' and \backslashes\`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			for form, quoted := range map[string]string{
				"QuoteArg": QuoteArg(in),
				"Quote":    Quote(in),
			} {
				out, err := exec.Command("sh", "-c", `printf '%s' `+quoted).Output()
				if err != nil {
					t.Fatalf("%s: shell failed: %v", form, err)
				}
				if got := string(out); got != in {
					t.Errorf("%s round-trip = %q, want %q", form, got, in)
				}
			}
		})
	}
}

func TestQuoteArgSingleWord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping shell round-trip in short mode")
	}

	// An argument containing quote and dollar characters must arrive as
	// exactly one word, not be split or expanded.
	arg := `he said "hi" to $USER`
	out, err := exec.Command("sh", "-c", `for a in `+QuoteArg(arg)+`; do printf '[%s]' "$a"; done`).Output()
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	want := "[" + arg + "]"
	if got := string(out); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Count(string(out), "[") != 1 {
		t.Errorf("argument was split into %d words", strings.Count(string(out), "["))
	}
}
