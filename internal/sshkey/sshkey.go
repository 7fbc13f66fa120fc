// Package sshkey provisions key-based trust on lab machines: a local
// Ed25519 identity generated on first use, its public half installed over
// a one-time password login.
package sshkey

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/keygen"
	"golang.org/x/crypto/ssh"
)

// dialTimeout bounds the bootstrap connection attempt.
const dialTimeout = 30 * time.Second

// DefaultKeyFile is where the generated identity lands when the caller does
// not name one.
func DefaultKeyFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".ssh", "id_ed25519"), nil
}

// EnsureKeyPair loads the keypair at path, generating and writing a fresh
// Ed25519 pair when none exists.
func EnsureKeyPair(path string) (*keygen.KeyPair, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	kp, err := keygen.New(path, keygen.WithKeyType(keygen.Ed25519), keygen.WithWrite())
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return kp, nil
}

// Install appends authorizedKey to user's authorized_keys on addr
// (host:port), authenticating with password. The key travels over stdin so
// no quoting of key material happens on the remote shell.
func Install(ctx context.Context, addr, user, password string, authorizedKey []byte) error {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to authenticate to %s as %s: %w", addr, user, err)
	}
	client := ssh.NewClient(clientConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	key := append(bytes.TrimSpace(authorizedKey), '\n')
	session.Stdin = bytes.NewReader(key)
	script := "mkdir -p $HOME/.ssh && chmod 700 $HOME/.ssh && cat >> $HOME/.ssh/authorized_keys && chmod 600 $HOME/.ssh/authorized_keys"
	if err := session.Run(script); err != nil {
		return fmt.Errorf("failed to install authorized key: %w", err)
	}
	return nil
}
