// Package facts gathers system information from lab machines.
package facts

import (
	"context"
	"strings"

	"github.com/velumanit/Autotest/internal/remote"
)

// Runner executes commands on one machine. *remote.Host implements it.
type Runner interface {
	Run(ctx context.Context, command string, opts ...remote.RunOption) (*remote.Result, error)
}

var _ Runner = (*remote.Host)(nil)

// envVars are the environment variables worth reporting per host.
var envVars = []string{"PATH", "SHELL", "LANG", "TERM"}

// Gather collects system facts from one machine. The first probe failing
// means the host cannot be reached and aborts the gather; after that every
// fact is best effort.
func Gather(ctx context.Context, r Runner) (map[string]string, error) {
	facts := make(map[string]string)

	res, err := r.Run(ctx, "uname -s")
	if err != nil {
		return nil, err
	}
	osType := strings.TrimSpace(res.Stdout)
	facts["os_type"] = osType

	if osType == "Linux" {
		gatherOSRelease(ctx, r, facts)
	}

	if res, err := r.Run(ctx, "uname -m"); err == nil {
		arch := strings.TrimSpace(res.Stdout)
		facts["architecture"] = arch
		facts["arch"] = normalizeArch(arch)
	}
	if res, err := r.Run(ctx, "uname -r"); err == nil {
		facts["kernel"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := r.Run(ctx, "hostname"); err == nil {
		facts["hostname"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := r.Run(ctx, "whoami"); err == nil {
		facts["user"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := r.Run(ctx, "echo $HOME"); err == nil {
		facts["home"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := r.Run(ctx, "nproc", remote.WithIgnoreStatus()); err == nil && res.ExitStatus == 0 {
		facts["cpus"] = strings.TrimSpace(res.Stdout)
	}

	for _, v := range envVars {
		if res, err := r.Run(ctx, "echo $"+v); err == nil {
			if value := strings.TrimSpace(res.Stdout); value != "" {
				facts["env."+v] = value
			}
		}
	}

	return facts, nil
}

// gatherOSRelease folds distribution facts from /etc/os-release into facts.
func gatherOSRelease(ctx context.Context, r Runner, facts map[string]string) {
	res, err := r.Run(ctx, "cat /etc/os-release", remote.WithIgnoreStatus())
	if err != nil || res.ExitStatus != 0 {
		return
	}

	osRelease := ParseOSRelease(res.Stdout)
	if id, ok := osRelease["ID"]; ok {
		facts["distribution"] = id
		if family := distroFamily(id); family != "" {
			facts["os_family"] = family
		}
	}
	if version, ok := osRelease["VERSION_ID"]; ok {
		facts["distribution_version"] = version
	}
	if name, ok := osRelease["PRETTY_NAME"]; ok {
		facts["os_name"] = name
	}
}

// ParseOSRelease parses /etc/os-release format.
func ParseOSRelease(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx > 0 {
			key := line[:idx]
			value := strings.Trim(line[idx+1:], "\"'")
			result[key] = value
		}
	}
	return result
}

// normalizeArch maps uname -m output onto Go architecture names.
func normalizeArch(arch string) string {
	switch arch {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l":
		return "arm"
	default:
		return arch
	}
}

// distroFamily maps an os-release ID onto a distribution family.
func distroFamily(id string) string {
	switch id {
	case "ubuntu", "debian", "linuxmint", "pop":
		return "Debian"
	case "fedora", "rhel", "centos", "rocky", "almalinux":
		return "RedHat"
	case "arch", "manjaro":
		return "Arch"
	case "alpine":
		return "Alpine"
	case "opensuse", "sles":
		return "Suse"
	default:
		return ""
	}
}
