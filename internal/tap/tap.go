// Package tap manages git repositories of formulas cloned under
// <prefix>/Library/Taps/<owner>/<repo>.
package tap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/cbtap/cbtap/internal/formula"
)

var (
	ErrTapExists   = errors.New("tap already exists")
	ErrTapNotFound = errors.New("tap not found")
	ErrInvalidName = errors.New("tap name must be <owner>/<repo>")
)

var namePart = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Tap is one cloned formula repository.
type Tap struct {
	Name string
	Dir  string
	URL  string
	Head string
}

// Source exposes the tap's Formula directory to a formula.Registry.
func (t Tap) Source() formula.Source {
	return formula.Source{Name: t.Name, FS: os.DirFS(t.Dir)}
}

// Manager clones, updates and removes taps under one directory.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{dir: dir, logger: logger}
}

// DefaultURL is the clone URL used when Add is given none.
func DefaultURL(name string) string {
	return "https://github.com/" + name + ".git"
}

func (m *Manager) path(name string) (string, error) {
	owner, repo, ok := splitName(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(m.dir, owner, repo), nil
}

func splitName(name string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(name, "/")
	if !ok || !namePart.MatchString(owner) || !namePart.MatchString(repo) {
		return "", "", false
	}
	return owner, repo, true
}

// Add clones url into the tap directory for name. An empty url uses
// DefaultURL. A partial clone is removed on failure.
func (m *Manager) Add(ctx context.Context, name, url string) (*Tap, error) {
	dir, err := m.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTapExists, name)
	}
	if url == "" {
		url = DefaultURL(name)
	}

	m.logger.Info("cloning tap", "tap", name, "url", url)
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{URL: url})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	if _, err := os.Stat(filepath.Join(dir, formula.FormulaDir)); err != nil {
		m.logger.Warn("tap has no Formula directory", "tap", name)
	}

	return describe(name, dir, repo)
}

// Update pulls the tap's tracking branch. It reports whether HEAD moved.
func (m *Manager) Update(ctx context.Context, name string) (bool, error) {
	dir, err := m.path(name)
	if err != nil {
		return false, err
	}

	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return false, fmt.Errorf("%w: %s", ErrTapNotFound, name)
	}
	if err != nil {
		return false, fmt.Errorf("open tap %s: %w", name, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{RemoteName: gogit.DefaultRemoteName})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		m.logger.Debug("tap already up to date", "tap", name)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pull %s: %w", name, err)
	}

	m.logger.Info("updated tap", "tap", name)
	return true, nil
}

// UpdateAll pulls every tap and returns the names that changed.
func (m *Manager) UpdateAll(ctx context.Context) ([]string, error) {
	taps, err := m.List()
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, t := range taps {
		moved, err := m.Update(ctx, t.Name)
		if err != nil {
			return changed, err
		}
		if moved {
			changed = append(changed, t.Name)
		}
	}
	return changed, nil
}

// Remove deletes the tap's clone.
func (m *Manager) Remove(name string) error {
	dir, err := m.path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrTapNotFound, name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove tap %s: %w", name, err)
	}

	// Drop the owner directory once its last tap is gone.
	owner := filepath.Dir(dir)
	if entries, err := os.ReadDir(owner); err == nil && len(entries) == 0 {
		os.Remove(owner)
	}
	return nil
}

// List returns every tap that is a git repository, sorted by name.
func (m *Manager) List() ([]Tap, error) {
	owners, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read taps dir: %w", err)
	}

	var taps []Tap
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(m.dir, owner.Name()))
		if err != nil {
			return nil, fmt.Errorf("read taps dir: %w", err)
		}
		for _, r := range repos {
			if !r.IsDir() {
				continue
			}
			name := owner.Name() + "/" + r.Name()
			dir := filepath.Join(m.dir, owner.Name(), r.Name())

			repo, err := gogit.PlainOpen(dir)
			if err != nil {
				m.logger.Warn("skipping tap that is not a git repository", "tap", name, "error", err)
				continue
			}
			t, err := describe(name, dir, repo)
			if err != nil {
				return nil, err
			}
			taps = append(taps, *t)
		}
	}

	sort.Slice(taps, func(i, j int) bool { return taps[i].Name < taps[j].Name })
	return taps, nil
}

// Sources returns a formula source per tap, in List order.
func (m *Manager) Sources() ([]formula.Source, error) {
	taps, err := m.List()
	if err != nil {
		return nil, err
	}
	sources := make([]formula.Source, 0, len(taps))
	for _, t := range taps {
		sources = append(sources, t.Source())
	}
	return sources, nil
}

func describe(name, dir string, repo *gogit.Repository) (*Tap, error) {
	t := &Tap{Name: name, Dir: dir}

	if remote, err := repo.Remote(gogit.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			t.URL = urls[0]
		}
	}

	head, err := repo.Head()
	if err == nil {
		t.Head = head.Hash().String()
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("read HEAD of %s: %w", name, err)
	}
	return t, nil
}
