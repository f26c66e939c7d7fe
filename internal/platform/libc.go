package platform

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// lddTarget is the system binary whose dynamic linkage is inspected.
const lddTarget = "/bin/ls"

// muslLoaders maps normalized architectures to the musl runtime loader path.
var muslLoaders = map[string]string{
	"arm64": "/lib/libc.musl-aarch64.so.1",
	"amd64": "/lib/libc.musl-x86_64.so.1",
}

// LibcProbe inspects the host to decide between glibc and musl.
// Both hooks are swappable so tests can fake a filesystem and ldd.
type LibcProbe struct {
	// Exists reports whether a path exists.
	Exists func(path string) bool
	// Run executes a command and returns its combined output.
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLibcProbe returns a probe backed by the real filesystem and exec.
func NewLibcProbe() *LibcProbe {
	return &LibcProbe{
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Detect returns the libc flavor for arch and the signal that decided it.
// musl wins if its loader exists or ldd mentions it; anything else,
// including a failing ldd, falls through to glibc.
func (p *LibcProbe) Detect(ctx context.Context, arch string) (libc, source string) {
	if loader, ok := muslLoaders[arch]; ok && p.Exists != nil && p.Exists(loader) {
		return LibcMusl, SourceFile
	}

	if p.Run != nil {
		// musl's ldd exits non-zero when run on itself, so the error is
		// ignored and only the output matters.
		out, _ := p.Run(ctx, "ldd", lddTarget)
		if strings.Contains(string(out), "musl") {
			return LibcMusl, SourceLdd
		}
	}

	return LibcGlibc, SourceDefault
}
