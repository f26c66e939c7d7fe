package platform

import (
	"fmt"
	"strings"
)

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// normalizeArch converts GOARCH and uname-style values to amd64 or arm64.
func normalizeArch(arch string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "amd64", "x86_64", "x64":
		return "amd64", nil
	case "arm64", "aarch64":
		return "arm64", nil
	default:
		return "", fmt.Errorf("%w: architecture %q", ErrUnsupportedPlatform, arch)
	}
}

// ParseLibc validates a user-supplied libc override.
// The empty string means "detect".
func ParseLibc(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "glibc", "gnu":
		return LibcGlibc, nil
	case "musl":
		return LibcMusl, nil
	default:
		return "", fmt.Errorf("unknown libc %q (want glibc or musl)", s)
	}
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizeField(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}

// FromKey builds the Info a platform key stands for. It is the inverse of
// Info.Key and lets callers inspect another platform's artifact.
func FromKey(k Key) (*Info, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: key %q", ErrUnsupportedPlatform, k)
	}

	parts := strings.Split(k.String(), "-")
	arch, err := normalizeArch(parts[1])
	if err != nil {
		return nil, err
	}

	info := &Info{Arch: arch, ArchRaw: parts[1]}
	switch parts[0] {
	case "mac":
		info.OS = "darwin"
	case "linux":
		info.OS = "linux"
		info.Libc = parts[2]
		info.LibcSource = SourceOverride
	}
	return info, nil
}
