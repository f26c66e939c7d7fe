// Package platform resolves the host into one of the platform keys a formula
// publishes artifacts for.
//
// Resolution runs OS, then architecture, then (on Linux only) the C library
// flavor. The libc flavor is a runtime probe of the host: the musl loader
// path is checked first, then the output of `ldd /bin/ls`. Because that
// probe can be fooled (a container image that differs from the probed
// binary, for example), callers may pass an explicit override which
// short-circuits detection entirely.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned when the host has no platform key.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Libc flavors.
const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
)

// Where the libc flavor came from.
const (
	SourceOverride = "override" // explicit CBTAP_LIBC / --libc
	SourceFile     = "file"     // musl loader found on disk
	SourceLdd      = "ldd"      // ldd output mentioned musl
	SourceDefault  = "default"  // nothing pointed at musl, glibc assumed
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"
	FamilyRHEL    = "rhel"
	FamilyFedora  = "fedora"
	FamilySUSE    = "suse"
	FamilyArch    = "arch"
	FamilyAlpine  = "alpine"
	FamilyGentoo  = "gentoo"
	FamilyUnknown = "unknown"
)

// Key identifies one published artifact variant.
type Key string

// The six platform keys a formula may declare.
const (
	KeyMacARM64        Key = "mac-arm64"
	KeyMacX8664        Key = "mac-x86_64"
	KeyLinuxARM64Glibc Key = "linux-arm64-glibc"
	KeyLinuxARM64Musl  Key = "linux-arm64-musl"
	KeyLinuxX8664Glibc Key = "linux-x86_64-glibc"
	KeyLinuxX8664Musl  Key = "linux-x86_64-musl"
)

// AllKeys lists every platform key in a stable order.
var AllKeys = []Key{
	KeyMacARM64,
	KeyMacX8664,
	KeyLinuxARM64Glibc,
	KeyLinuxARM64Musl,
	KeyLinuxX8664Glibc,
	KeyLinuxX8664Musl,
}

// String returns the key as written in formulas.
func (k Key) String() string {
	return string(k)
}

// Valid reports whether k is one of AllKeys.
func (k Key) Valid() bool {
	for _, known := range AllKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Info contains platform detection information.
type Info struct {
	OS         string // "linux", "darwin"
	Arch       string // "amd64", "arm64" (normalized)
	ArchRaw    string // original value before normalization
	Libc       string // "glibc", "musl"; empty off Linux
	LibcSource string // one of the Source* constants; empty off Linux
	Platform   string // distro ID (Linux only, e.g. "alpine")
	Family     string // canonical distro family
	Version    string // distro version
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsMusl returns true on Linux hosts resolved to musl.
func (i *Info) IsMusl() bool {
	return i.IsLinux() && i.Libc == LibcMusl
}

// Key maps the platform to its artifact key.
func (i *Info) Key() (Key, error) {
	var arch string
	switch i.Arch {
	case "arm64":
		arch = "arm64"
	case "amd64":
		arch = "x86_64"
	default:
		return "", fmt.Errorf("%w: architecture %q", ErrUnsupportedPlatform, i.Arch)
	}

	switch i.OS {
	case "darwin":
		return Key("mac-" + arch), nil
	case "linux":
		libc := i.Libc
		if libc == "" {
			libc = LibcGlibc
		}
		if libc != LibcGlibc && libc != LibcMusl {
			return "", fmt.Errorf("%w: libc %q", ErrUnsupportedPlatform, libc)
		}
		return Key("linux-" + arch + "-" + libc), nil
	default:
		return "", fmt.Errorf("%w: os %q", ErrUnsupportedPlatform, i.OS)
	}
}

// String renders the platform for humans.
func (i *Info) String() string {
	if i.IsLinux() {
		return fmt.Sprintf("%s/%s (%s via %s)", i.OS, i.Arch, i.Libc, i.LibcSource)
	}
	return fmt.Sprintf("%s/%s", i.OS, i.Arch)
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
