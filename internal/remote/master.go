package remote

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/velumanit/Autotest/internal/proc"
)

// master is the state of the background multiplexing session: the ssh -N
// process holding the connection and the private directory containing its
// control socket.
type master struct {
	job    *proc.Job
	dir    string
	socket string
}

func (m *master) cleanup() {
	m.job.Kill()
	_ = os.RemoveAll(m.dir)
}

// ensureMaster starts the shared session if it is missing or dead.
// Concurrent callers serialize on the host lock, so at most one master
// exists per host and the second ensure is a no-op. Failure to start is
// not fatal: commands fall back to direct, unmultiplexed connections.
func (h *Host) ensureMaster(cfg RunConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.master != nil {
		if h.master.job.Running() {
			return
		}
		h.logger.Debug().Str("host", h.target.Addr()).Msg("master ssh session died, cleaning up")
		h.master.cleanup()
		h.master = nil
	}

	dir, err := os.MkdirTemp("", "ssh-master-")
	if err != nil {
		h.logger.Warn().Err(err).Msg("cannot create control socket directory")
		return
	}
	socket := filepath.Join(dir, "socket")

	// The shared session gets the call's transport timing but none of its
	// per-command options.
	mcfg := cfg
	mcfg.Options = nil
	mcfg.Env = nil
	mcfg.Args = nil

	args := masterArgs(h.sshBin, h.target, mcfg, socket)
	h.logger.Debug().Str("host", h.target.Addr()).Str("cmd", strings.Join(args, " ")).Msg("starting master ssh session")

	job, err := h.runner.Start(args, proc.Options{})
	if err != nil {
		h.logger.Warn().Err(err).Str("host", h.target.Addr()).Msg("failed to start master ssh session")
		_ = os.RemoveAll(dir)
		return
	}
	h.master = &master{job: job, dir: dir, socket: socket}
}

// controlPath returns the live master socket, or empty when commands must
// connect directly.
func (h *Host) controlPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.master != nil && h.master.job.Running() {
		return h.master.socket
	}
	return ""
}

// Close tears down the master session and its socket directory. Safe to
// call repeatedly; a later command simply starts a fresh session.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.master != nil {
		h.master.cleanup()
		h.master = nil
	}
	return nil
}
