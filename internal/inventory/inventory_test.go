package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/velumanit/Autotest/internal/remote"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantTargets int
		wantErr     bool
	}{
		{
			name: "flat target list",
			yaml: `
targets:
  - hostname: node1.lab
  - hostname: node2.lab
    port: 2222
`,
			wantTargets: 2,
		},
		{
			name: "defaults block",
			yaml: `
defaults:
  user: autotest
  port: 2222
targets:
  - hostname: node1.lab
  - hostname: node2.lab
`,
			wantTargets: 2,
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name:    "empty inventory",
			yaml:    `targets: []`,
			wantErr: true,
		},
		{
			name: "target without hostname",
			yaml: `
targets:
  - user: autotest
`,
			wantErr: true,
		},
		{
			name: "duplicate targets",
			yaml: `
targets:
  - hostname: node1.lab
  - hostname: node1.lab
`,
			wantErr: true,
		},
		{
			name: "same host on two ports is distinct",
			yaml: `
targets:
  - hostname: node1.lab
  - hostname: node1.lab
    port: 2222
`,
			wantTargets: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(inv.Targets) != tt.wantTargets {
				t.Errorf("got %d targets, want %d", len(inv.Targets), tt.wantTargets)
			}
		})
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	inv, err := Parse([]byte(`
defaults:
  user: autotest
  port: 2222
  identity_file: /keys/lab_ed25519
targets:
  - hostname: node1.lab
  - hostname: node2.lab
    user: root
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	first := inv.Targets[0]
	if first.User != "autotest" || first.Port != 2222 {
		t.Errorf("defaults not applied: %+v", first)
	}
	if first.IdentityFile != "/keys/lab_ed25519" {
		t.Errorf("IdentityFile = %q, want default", first.IdentityFile)
	}

	// Explicit fields win over the defaults block.
	second := inv.Targets[1]
	if second.User != "root" {
		t.Errorf("User = %q, want explicit root", second.User)
	}
	if second.Port != 2222 {
		t.Errorf("Port = %d, want defaulted 2222", second.Port)
	}
}

func TestParseFillsConnectionDefaults(t *testing.T) {
	inv, err := Parse([]byte("targets:\n  - hostname: node1.lab\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := inv.Targets[0]
	if got.User != "root" || got.Port != 22 || got.KnownHostsFile != "/dev/null" {
		t.Errorf("connection defaults not applied: %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	content := "targets:\n  - hostname: node1.lab\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	inv, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if inv.Path != path {
		t.Errorf("Path = %q, want %q", inv.Path, path)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() on a missing file returned nil error")
	}
}

func TestSelect(t *testing.T) {
	inv, err := Parse([]byte(`
targets:
  - hostname: node1.lab
  - hostname: node2.lab
  - hostname: node3.lab
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	all, err := inv.Select(nil)
	if err != nil {
		t.Fatalf("Select(nil) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Select(nil) returned %d targets, want 3", len(all))
	}

	some, err := inv.Select([]string{"node3.lab", "node1.lab"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(some) != 2 || some[0].Hostname != "node3.lab" || some[1].Hostname != "node1.lab" {
		t.Errorf("Select() = %+v, want node3 then node1", some)
	}

	if _, err := inv.Select([]string{"ghost.lab"}); err == nil {
		t.Error("Select() with an unknown host returned nil error")
	} else if !strings.Contains(err.Error(), "ghost.lab") {
		t.Errorf("Select() error = %v, want the unknown hostname named", err)
	}
}

func TestExpandCommand(t *testing.T) {
	target := remote.Target{Hostname: "node1.lab", User: "autotest", Port: 2222}

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{
			name:    "no placeholders",
			command: "uptime",
			want:    "uptime",
		},
		{
			name:    "hostname",
			command: "ping -c1 ${hostname}",
			want:    "ping -c1 node1.lab",
		},
		{
			name:    "all placeholders",
			command: "echo ${user} ${hostname} ${port} ${addr}",
			want:    "echo autotest node1.lab 2222 autotest@node1.lab:2222",
		},
		{
			name:    "spacing inside braces",
			command: "echo ${ hostname }",
			want:    "echo node1.lab",
		},
		{
			name:    "unknown placeholder kept",
			command: "echo ${rack}",
			want:    "echo ${rack}",
		},
		{
			name:    "shell expansion untouched",
			command: "echo ${PATH}",
			want:    "echo ${PATH}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandCommand(tt.command, target); got != tt.want {
				t.Errorf("ExpandCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}
