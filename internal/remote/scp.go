package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/velumanit/Autotest/internal/proc"
	"github.com/velumanit/Autotest/internal/shell"
)

// scpArgs builds the argv for one scp transfer, reusing the target's
// transport settings and the master socket when one is live.
func scpArgs(bin string, t Target, cfg RunConfig, controlPath, src, dst string) []string {
	// -O selects the classic scp protocol. remoteSpec quotes paths for
	// the remote shell expansion that protocol performs; the SFTP mode
	// scp defaults to since OpenSSH 9 takes the quotes as path bytes.
	args := []string{bin, "-O"}
	if controlPath != "" {
		args = append(args, "-o", "ControlPath="+controlPath)
	}
	args = append(args,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile="+t.KnownHostsFile,
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(cfg.ConnectTimeout.Seconds())),
	)
	if t.IdentityFile != "" {
		args = append(args, "-i", t.IdentityFile)
	}
	args = append(args, "-P", strconv.Itoa(t.Port), src, dst)
	return args
}

// remoteSpec is the user@host:path form scp expects. The path is quoted
// for the remote shell expansion pass of the classic protocol.
func (t Target) remoteSpec(remotePath string) string {
	return fmt.Sprintf("%s@%s:%s", t.User, t.Hostname, shell.Quote(remotePath))
}

// SendFile copies a local file onto the target.
func (h *Host) SendFile(ctx context.Context, local, remotePath string, opts ...RunOption) error {
	cfg := buildRunConfig(opts)
	if err := cfg.validate(); err != nil {
		return err
	}
	h.bootstrap(ctx)
	h.ensureMaster(cfg)
	return h.sendFile(ctx, local, remotePath, cfg)
}

// GetFile copies a remote file into a local path.
func (h *Host) GetFile(ctx context.Context, remotePath, local string, opts ...RunOption) error {
	cfg := buildRunConfig(opts)
	if err := cfg.validate(); err != nil {
		return err
	}
	h.bootstrap(ctx)
	h.ensureMaster(cfg)
	return h.transfer(ctx, h.target.remoteSpec(remotePath), local, cfg)
}

func (h *Host) sendFile(ctx context.Context, local, remotePath string, cfg RunConfig) error {
	return h.transfer(ctx, local, h.target.remoteSpec(remotePath), cfg)
}

func (h *Host) transfer(ctx context.Context, src, dst string, cfg RunConfig) error {
	args := scpArgs(h.scpBin, h.target, cfg, h.controlPath(), src, dst)
	display := strings.Join(args, " ")
	if cfg.Verbose {
		h.logger.Debug().Str("host", h.target.Addr()).Str("cmd", display).Msg("copying file")
	}

	pr, err := h.runner.Run(ctx, args, proc.Options{Timeout: cfg.Timeout})
	if err != nil {
		return fmt.Errorf("failed to run scp: %w", err)
	}

	res := resultFrom(display, pr)
	if cerr := classify(res, false); cerr != nil {
		return cerr
	}
	return nil
}
