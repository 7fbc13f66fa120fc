package remote

import (
	"fmt"
	"strconv"

	"github.com/velumanit/Autotest/internal/shell"
)

// sshArgs builds the argv for one ssh invocation against a target.
// Flags mirror long-standing lab behavior: no agent forwarding, no X11,
// host-key checking off against throwaway nodes, batch mode so a dead key
// setup fails fast instead of prompting. controlPath, when non-empty,
// routes the session through the master socket. remoteCmd, when non-empty,
// is passed as the final argument; otherwise the invocation opens a plain
// session (used by the master itself with -N).
func sshArgs(bin string, t Target, cfg RunConfig, controlPath, remoteCmd string) []string {
	args := []string{bin, "-a", "-x"}
	args = append(args, cfg.Options...)
	if controlPath != "" {
		args = append(args, "-o", "ControlPath="+controlPath)
	}
	args = append(args,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile="+t.KnownHostsFile,
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(cfg.ConnectTimeout.Seconds())),
		"-o", fmt.Sprintf("ServerAliveInterval=%d", int(cfg.AliveInterval.Seconds())),
	)
	if t.IdentityFile != "" {
		args = append(args, "-i", t.IdentityFile)
	}
	args = append(args, "-l", t.User, "-p", strconv.Itoa(t.Port), t.Hostname)
	if remoteCmd != "" {
		args = append(args, remoteCmd)
	}
	return args
}

// masterArgs builds the argv for the background multiplexing session: no
// remote command, just the control socket holder.
func masterArgs(bin string, t Target, cfg RunConfig, controlPath string) []string {
	cfg.Options = append([]string{"-N", "-o", "ControlMaster=yes"}, cfg.Options...)
	return sshArgs(bin, t, cfg, controlPath, "")
}

// commandWithArgs appends each extra argument to the command text, escaped
// into one literal remote shell word.
func commandWithArgs(command string, args []string) string {
	for _, a := range args {
		command += " " + shell.QuoteArg(a)
	}
	return command
}

// withExports prefixes the env export statement when env is non-empty.
func withExports(cmd string, env map[string]string) string {
	if exports := shell.Exports(env); exports != "" {
		return exports + " " + cmd
	}
	return cmd
}

// remoteCommand assembles the single argv element the remote shell will
// interpret: optional env exports, the command text verbatim, then each
// extra argument escaped into one literal word.
func remoteCommand(command string, cfg RunConfig) string {
	return withExports(commandWithArgs(command, cfg.Args), cfg.Env)
}
