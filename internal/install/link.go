package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrLinkConflict is returned when a path in the bin dir is not ours.
var ErrLinkConflict = errors.New("link conflict")

// LinkConflictError names the path that blocked linking.
type LinkConflictError struct {
	Path string
}

func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("%s already exists and is not managed by cbtap (use --overwrite)", e.Path)
}

func (e *LinkConflictError) Unwrap() error {
	return ErrLinkConflict
}

// linker maintains relative symlinks from the bin dir into kegs.
type linker struct {
	layout Layout
}

// link points binDir/<name> at kegBin/<name> for every name. All paths are
// checked before any link is created, so a conflict changes nothing.
func (l linker) link(kegBin string, names []string, overwrite bool) error {
	binDir := l.layout.BinDir()
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return fmt.Errorf("create bin dir: %w", err)
	}

	for _, name := range names {
		dst := filepath.Join(binDir, name)
		if overwrite {
			continue
		}
		owned, exists := l.owned(dst)
		if exists && !owned {
			return &LinkConflictError{Path: dst}
		}
	}

	for _, name := range names {
		dst := filepath.Join(binDir, name)
		target, err := filepath.Rel(binDir, filepath.Join(kegBin, name))
		if err != nil {
			return fmt.Errorf("relative link target: %w", err)
		}
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return fmt.Errorf("link %s: %w", name, err)
		}
	}
	return nil
}

// unlink removes bin dir links that point into keg. Other entries are
// left alone.
func (l linker) unlink(keg string) ([]string, error) {
	entries, err := os.ReadDir(l.layout.BinDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bin dir: %w", err)
	}

	var removed []string
	for _, e := range entries {
		dst := filepath.Join(l.layout.BinDir(), e.Name())
		target, ok := l.resolve(dst)
		if !ok || !within(target, keg) {
			continue
		}
		if err := os.Remove(dst); err != nil {
			return removed, fmt.Errorf("unlink %s: %w", dst, err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// owned reports whether path exists and, if so, whether it is a symlink
// into this prefix's Cellar.
func (l linker) owned(path string) (owned, exists bool) {
	if _, err := os.Lstat(path); err != nil {
		return false, false
	}
	target, ok := l.resolve(path)
	return ok && within(target, l.layout.Cellar()), true
}

// resolve returns the absolute, cleaned target of a symlink without
// following further links.
func (l linker) resolve(path string) (string, bool) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), true
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
