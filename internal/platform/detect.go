package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// distroFunc matches host.PlatformInformationWithContext.
type distroFunc func(ctx context.Context) (platform, family, version string, err error)

// RealDetector implements Detector for the running host.
type RealDetector struct {
	goos   string
	goarch string
	libc   string // validated override; empty means probe
	probe  *LibcProbe
	distro distroFunc
}

// NewDetector creates a detector for the running host. A non-empty libc
// forces that flavor on Linux instead of probing; it must already have
// been validated with ParseLibc.
func NewDetector(libc string) *RealDetector {
	return &RealDetector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		libc:   libc,
		probe:  NewLibcProbe(),
		distro: host.PlatformInformationWithContext,
	}
}

// Detect performs platform detection.
//
// Distro fields come from gopsutil and are informational only; a failure
// there leaves them empty. Libc resolution never fails: without an
// override it falls back to glibc.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", err)
	}

	arch, err := normalizeArch(d.goarch)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}

	info := &Info{
		OS:      d.goos,
		Arch:    arch,
		ArchRaw: d.goarch,
	}

	if !info.IsLinux() {
		return info, nil
	}

	if d.libc != "" {
		info.Libc, info.LibcSource = d.libc, SourceOverride
	} else {
		info.Libc, info.LibcSource = d.probe.Detect(ctx, arch)
	}

	if d.distro != nil {
		platform, family, version, err := d.distro(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}
		if platform = normalizeField(platform); platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family)
			info.Version = normalizeField(version)
		}
	}

	return info, nil
}

// StaticDetector returns a fixed Info. It is used for `--platform`
// overrides and in tests.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured values.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return s.Info, s.Err
}
