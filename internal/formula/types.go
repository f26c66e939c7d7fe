// Package formula loads and validates the declarative recipes that describe
// one release of a tool: metadata, one pinned artifact per platform key,
// what to install, and how to smoke-test it.
//
// Formulas are Lua files evaluated in a sandbox. Each file assigns a global
// `formula` table:
//
//	local version = "2.23.0"
//	formula = {
//	  name = "codebuddy-code",
//	  version = version,
//	  artifacts = {
//	    ["mac-arm64"] = { url = "...", sha256 = "..." },
//	  },
//	  install = { bin = { "codebuddy" }, links = { cbc = "codebuddy" } },
//	}
//
// A read-only `platform` table describing the host is available while the
// file runs.
package formula

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cbtap/cbtap/internal/platform"
)

var (
	// ErrNoArtifact is returned when a formula has nothing for a platform.
	ErrNoArtifact = errors.New("no artifact for platform")
	// ErrFormulaNotFound is returned by Registry lookups.
	ErrFormulaNotFound = errors.New("formula not found")
)

// DefaultTestArgs is used when a formula does not declare test args.
var DefaultTestArgs = []string{"--version"}

// Formula is one immutable release record.
type Formula struct {
	Name     string
	Desc     string
	Homepage string
	License  string
	Version  string

	// Artifacts maps each supported platform to exactly one download.
	Artifacts map[platform.Key]Artifact

	// Bin lists files copied out of the archive into the keg's bin dir.
	// The first entry is the primary executable.
	Bin []string
	// Links maps alias -> target; both live in the keg's bin dir.
	Links map[string]string

	Test TestSpec

	// SigningKey is an optional armored OpenPGP public key used to check
	// artifact signatures.
	SigningKey string

	// Source records where the formula was loaded from ("builtin",
	// a tap name, or a file path).
	Source string
}

// Artifact is a downloadable archive pinned to a checksum.
type Artifact struct {
	URL          string
	SHA256       string
	SignatureURL string
}

// TestSpec describes the post-install version check.
type TestSpec struct {
	Args   []string
	Expect string
}

// BaseName strips a version pin: "codebuddy-code@2.22.0" -> "codebuddy-code".
func (f *Formula) BaseName() string {
	return BaseName(f.Name)
}

// BaseName strips a version pin from a formula name.
func BaseName(name string) string {
	if i := strings.IndexByte(name, '@'); i >= 0 {
		return name[:i]
	}
	return name
}

// IsPinned reports whether the formula name carries an @version suffix.
func (f *Formula) IsPinned() bool {
	return strings.Contains(f.Name, "@")
}

// MainBinary returns the primary executable name.
func (f *Formula) MainBinary() string {
	if len(f.Bin) == 0 {
		return ""
	}
	return f.Bin[0]
}

// Keys returns the declared platform keys in canonical order.
func (f *Formula) Keys() []platform.Key {
	keys := make([]platform.Key, 0, len(f.Artifacts))
	for _, k := range platform.AllKeys {
		if _, ok := f.Artifacts[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Resolve selects the artifact for info.
func (f *Formula) Resolve(info *platform.Info) (platform.Key, Artifact, error) {
	if info == nil {
		return "", Artifact{}, fmt.Errorf("platform info is required")
	}

	key, err := info.Key()
	if err != nil {
		return "", Artifact{}, err
	}

	artifact, ok := f.Artifacts[key]
	if !ok {
		return key, Artifact{}, fmt.Errorf("%w: %s has no %s build", ErrNoArtifact, f.Name, key)
	}
	return key, artifact, nil
}

// LinkNames returns link aliases sorted for deterministic output.
func (f *Formula) LinkNames() []string {
	names := make([]string, 0, len(f.Links))
	for alias := range f.Links {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// Pin returns a copy renamed to "<base>@<version>".
func (f *Formula) Pin() *Formula {
	pinned := *f
	pinned.Name = f.BaseName() + "@" + f.Version
	pinned.Artifacts = make(map[platform.Key]Artifact, len(f.Artifacts))
	for k, v := range f.Artifacts {
		pinned.Artifacts[k] = v
	}
	pinned.Bin = append([]string(nil), f.Bin...)
	pinned.Links = make(map[string]string, len(f.Links))
	for k, v := range f.Links {
		pinned.Links[k] = v
	}
	pinned.Test.Args = append([]string(nil), f.Test.Args...)
	pinned.Source = ""
	return &pinned
}
