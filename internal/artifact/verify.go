package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrChecksumMismatch marks an artifact whose content hash differs from the
// pinned checksum. It is always fatal.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError carries both hashes of a failed comparison.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s:\nactual:   %s\nexpected: %s", e.Path, e.Actual, e.Expected)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// VerificationMethod indicates how an artifact was verified.
type VerificationMethod int

const (
	// VerificationNone means nothing was checked.
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 means the pinned checksum matched.
	VerificationSHA256
	// VerificationGPG means the checksum matched and a signature verified.
	VerificationGPG
)

// String returns the string representation of the verification method.
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "SHA256"
	case VerificationGPG:
		return "SHA256+GPG"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// SHA256File returns the hex SHA256 of a file.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 compares the file's hash to expected, case-insensitively.
func VerifySHA256(path, expected string) error {
	actual, err := SHA256File(path)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}
	if !strings.EqualFold(actual, expected) {
		return &ChecksumError{Path: path, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}

// VerifySignature checks a detached signature (armored or binary) over the
// file using the armored public key in armoredKey.
func VerifySignature(path, signaturePath, armoredKey string) error {
	keyring, err := readKeyring(armoredKey)
	if err != nil {
		return err
	}

	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, bytes.NewReader(sig), nil)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind artifact: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, f, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func readKeyring(armoredKey string) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}
