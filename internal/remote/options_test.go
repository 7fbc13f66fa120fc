package remote

import (
	"errors"
	"testing"
	"time"
)

func TestRunConfigDefaults(t *testing.T) {
	cfg := buildRunConfig(nil)
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s, want %s", cfg.Timeout, DefaultTimeout)
	}
	if cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %s, want %s", cfg.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.AliveInterval != DefaultAliveInterval {
		t.Errorf("AliveInterval = %s, want %s", cfg.AliveInterval, DefaultAliveInterval)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}
	if cfg.IgnoreStatus {
		t.Error("IgnoreStatus = true, want false")
	}
}

func TestRunOptionsApply(t *testing.T) {
	cfg := buildRunConfig([]RunOption{
		WithTimeout(5 * time.Minute),
		WithConnectTimeout(10 * time.Second),
		WithAliveInterval(30 * time.Second),
		WithIgnoreStatus(),
		WithVerbose(false),
		WithOptions("-o", "Compression=yes"),
		WithArgs("one"),
		WithArgs("two", "three"),
		WithEnv(map[string]string{"MODE": "quick"}),
	})

	if cfg.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %s, want 5m", cfg.Timeout)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %s, want 10s", cfg.ConnectTimeout)
	}
	if cfg.AliveInterval != 30*time.Second {
		t.Errorf("AliveInterval = %s, want 30s", cfg.AliveInterval)
	}
	if !cfg.IgnoreStatus {
		t.Error("IgnoreStatus = false, want true")
	}
	if cfg.Verbose {
		t.Error("Verbose = true, want false")
	}
	if len(cfg.Options) != 2 || cfg.Options[0] != "-o" {
		t.Errorf("Options = %q", cfg.Options)
	}
	if len(cfg.Args) != 3 || cfg.Args[2] != "three" {
		t.Errorf("Args = %q, want accumulated one two three", cfg.Args)
	}
	if cfg.Env["MODE"] != "quick" {
		t.Errorf("Env = %v", cfg.Env)
	}
}

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *RunConfig) {}},
		{name: "zero timeout means unbounded", mutate: func(c *RunConfig) { c.Timeout = 0 }},
		{name: "negative timeout", mutate: func(c *RunConfig) { c.Timeout = -time.Second }, wantErr: true},
		{name: "zero connect timeout", mutate: func(c *RunConfig) { c.ConnectTimeout = 0 }, wantErr: true},
		{name: "zero alive interval", mutate: func(c *RunConfig) { c.AliveInterval = 0 }, wantErr: true},
		{
			name:    "env name with spaces",
			mutate:  func(c *RunConfig) { c.Env = map[string]string{"BAD NAME": "x"} },
			wantErr: true,
		},
		{
			name:    "env name starting with digit",
			mutate:  func(c *RunConfig) { c.Env = map[string]string{"1ST": "x"} },
			wantErr: true,
		},
		{
			name:   "underscored env name",
			mutate: func(c *RunConfig) { c.Env = map[string]string{"_TEST_MODE": "x"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultRunConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("validate() error = %v, want %v", err, ErrInvalidConfig)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate() error = %v", err)
			}
		})
	}
}
