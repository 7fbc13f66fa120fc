package remote

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/velumanit/Autotest/internal/sshkey"
)

// keyInstaller is the default KeyInstaller. It generates a local identity
// when needed and pushes its public half using the target's password.
type keyInstaller struct{}

var _ KeyInstaller = keyInstaller{}

func (keyInstaller) Install(ctx context.Context, t Target) error {
	keyFile := t.IdentityFile
	if keyFile == "" {
		var err error
		keyFile, err = sshkey.DefaultKeyFile()
		if err != nil {
			return fmt.Errorf("failed to resolve identity file: %w", err)
		}
	}

	kp, err := sshkey.EnsureKeyPair(keyFile)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(t.Hostname, strconv.Itoa(t.Port))
	return sshkey.Install(ctx, addr, t.User, t.Password, kp.RawAuthorizedKey())
}
