package formula

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	nameRegex    = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*(@[0-9][0-9A-Za-z.+-]*)?$`)
	versionRegex = regexp.MustCompile(`^[0-9][0-9A-Za-z.+-]*$`)
	sha256Regex  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidName reports whether name is a formula name, optionally pinned as
// name@version.
func ValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// ValidVersion reports whether version is a well-formed release version.
func ValidVersion(version string) bool {
	return versionRegex.MatchString(version)
}

// ValidationError reports an invalid formula field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the record invariants: one well-formed URL and checksum
// per platform key, a consistent install section, and a pin that agrees
// with the version.
func (f *Formula) Validate() error {
	if !ValidName(f.Name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("invalid formula name %q", f.Name)}
	}

	if !ValidVersion(f.Version) {
		return &ValidationError{Field: "version", Message: fmt.Sprintf("invalid version %q", f.Version)}
	}

	if f.IsPinned() && f.Name != f.BaseName()+"@"+f.Version {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("pinned name %q does not match version %q", f.Name, f.Version),
		}
	}

	if len(f.Artifacts) == 0 {
		return &ValidationError{Field: "artifacts", Message: "at least one platform artifact is required"}
	}

	for key, artifact := range f.Artifacts {
		field := "artifacts." + key.String()
		if !key.Valid() {
			return &ValidationError{Field: field, Message: "unknown platform key"}
		}
		if err := validateURL(artifact.URL); err != nil {
			return &ValidationError{Field: field + ".url", Message: err.Error()}
		}
		if !sha256Regex.MatchString(artifact.SHA256) {
			return &ValidationError{Field: field + ".sha256", Message: "must be 64 lowercase hex digits"}
		}
		if artifact.SignatureURL != "" {
			if err := validateURL(artifact.SignatureURL); err != nil {
				return &ValidationError{Field: field + ".signature", Message: err.Error()}
			}
			if f.SigningKey == "" {
				return &ValidationError{Field: field + ".signature", Message: "signature declared without signing_key"}
			}
		}
	}

	if len(f.Bin) == 0 {
		return &ValidationError{Field: "install.bin", Message: "at least one binary is required"}
	}

	bins := make(map[string]bool, len(f.Bin))
	for _, b := range f.Bin {
		if !isPlainName(b) {
			return &ValidationError{Field: "install.bin", Message: fmt.Sprintf("invalid binary name %q", b)}
		}
		if bins[b] {
			return &ValidationError{Field: "install.bin", Message: fmt.Sprintf("duplicate binary %q", b)}
		}
		bins[b] = true
	}

	for alias, target := range f.Links {
		if !isPlainName(alias) {
			return &ValidationError{Field: "install.links", Message: fmt.Sprintf("invalid link name %q", alias)}
		}
		if bins[alias] {
			return &ValidationError{Field: "install.links", Message: fmt.Sprintf("link %q shadows a binary", alias)}
		}
		if !bins[target] {
			return &ValidationError{Field: "install.links", Message: fmt.Sprintf("link %q points at unknown binary %q", alias, target)}
		}
	}

	if len(f.Test.Args) == 0 {
		return &ValidationError{Field: "test.args", Message: "at least one argument is required"}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// isPlainName rejects anything that could escape the bin directory.
func isPlainName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
