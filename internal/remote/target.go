package remote

import (
	"fmt"
)

// Connection defaults used when a Target leaves fields zero.
const (
	DefaultUser           = "root"
	DefaultPort           = 22
	DefaultKnownHostsFile = "/dev/null"
)

// Target identifies one remote machine and how to log into it. The
// password, when present, is used only to bootstrap key-based trust on the
// first connection; every command afterwards authenticates with keys.
type Target struct {
	Hostname       string `yaml:"hostname"`
	User           string `yaml:"user,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Password       string `yaml:"password,omitempty"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
	IdentityFile   string `yaml:"identity_file,omitempty"`
}

// WithDefaults returns a copy with zero fields filled in.
func (t Target) WithDefaults() Target {
	if t.User == "" {
		t.User = DefaultUser
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.KnownHostsFile == "" {
		t.KnownHostsFile = DefaultKnownHostsFile
	}
	return t
}

// Validate rejects targets that cannot produce a sane ssh invocation.
func (t Target) Validate() error {
	if t.Hostname == "" {
		return &ExecError{Err: ErrInvalidConfig, Detail: "target hostname is required"}
	}
	if t.Port < 1 || t.Port > 65535 {
		return &ExecError{Err: ErrInvalidConfig, Detail: fmt.Sprintf("target port %d out of range", t.Port)}
	}
	return nil
}

// Addr is the canonical user@host:port identity of the target, used as the
// pool key and in log lines.
func (t Target) Addr() string {
	return fmt.Sprintf("%s@%s:%d", t.User, t.Hostname, t.Port)
}

func (t Target) String() string {
	return t.Addr()
}
