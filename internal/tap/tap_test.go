package tap

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cbtap/cbtap/internal/formula"
)

const toolFormula = `formula = {
  name = "tool",
  version = "1.0.0",
  artifacts = {
    ["mac-arm64"] = {
      url = "https://example.com/1.0.0/tool.tar.gz",
      sha256 = "0000000000000000000000000000000000000000000000000000000000000001",
    },
  },
  install = { bin = { "tool" } },
}
`

// newRepo initializes a repository at dir with files committed.
func newRepo(t *testing.T, dir string, files map[string]string) *gogit.Repository {
	t.Helper()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	commitFiles(t, repo, dir, files)
	return repo
}

func commitFiles(t *testing.T, repo *gogit.Repository, dir string, files map[string]string) {
	t.Helper()

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("stage %s: %v", name, err)
		}
	}
	_, err = wt.Commit("update formulas", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		repo  string
		ok    bool
	}{
		{name: "cbtap/core", owner: "cbtap", repo: "core", ok: true},
		{name: "acme/homebrew-tools.v2", owner: "acme", repo: "homebrew-tools.v2", ok: true},
		{name: "core"},
		{name: "a/b/c"},
		{name: "../etc"},
		{name: "owner/.."},
		{name: "/repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, ok := splitName(tt.name)
			if ok != tt.ok || owner != tt.owner || repo != tt.repo {
				t.Errorf("splitName(%q) = %q, %q, %v", tt.name, owner, repo, ok)
			}
		})
	}
}

func TestManager_ListSourcesRemove(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	taps, err := m.List()
	if err != nil || len(taps) != 0 {
		t.Fatalf("List() on empty dir = %v, %v", taps, err)
	}

	dir := filepath.Join(root, "acme", "tools")
	repo := newRepo(t, dir, map[string]string{"Formula/tool.lua": toolFormula})
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://example.com/acme/tools.git"},
	}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "acme", "not-a-repo"), 0755); err != nil {
		t.Fatal(err)
	}

	taps, err = m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(taps) != 1 {
		t.Fatalf("List() = %d taps, want 1", len(taps))
	}
	got := taps[0]
	if got.Name != "acme/tools" || got.URL != "https://example.com/acme/tools.git" || len(got.Head) != 40 {
		t.Errorf("tap = %+v", got)
	}

	sources, err := m.Sources()
	if err != nil {
		t.Fatalf("Sources() error = %v", err)
	}
	reg := formula.NewRegistry(formula.NewParser(nil), nil)
	if err := reg.Load(context.Background(), sources[0]); err != nil {
		t.Fatalf("Load(tap) error = %v", err)
	}
	f, err := reg.Lookup("tool")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if f.Source != "acme/tools" {
		t.Errorf("Source = %q", f.Source)
	}

	if err := m.Remove("acme/tools"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("tap dir should be removed")
	}
	if err := m.Remove("acme/tools"); !errors.Is(err, ErrTapNotFound) {
		t.Errorf("second Remove() error = %v, want ErrTapNotFound", err)
	}
	if err := m.Remove("bogus"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Remove(bogus) error = %v, want ErrInvalidName", err)
	}
}

func TestManager_AddAndUpdate(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available for local file transport")
	}

	upstreamDir := t.TempDir()
	upstream := newRepo(t, upstreamDir, map[string]string{"Formula/tool.lua": toolFormula})

	ctx := context.Background()
	m := NewManager(t.TempDir(), nil)

	tp, err := m.Add(ctx, "acme/tools", upstreamDir)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tp.Dir, "Formula", "tool.lua")); err != nil {
		t.Errorf("formula not cloned: %v", err)
	}
	if tp.URL != upstreamDir {
		t.Errorf("URL = %q, want %q", tp.URL, upstreamDir)
	}

	if _, err := m.Add(ctx, "acme/tools", upstreamDir); !errors.Is(err, ErrTapExists) {
		t.Errorf("second Add() error = %v, want ErrTapExists", err)
	}

	moved, err := m.Update(ctx, "acme/tools")
	if err != nil || moved {
		t.Fatalf("Update() with no upstream change = %v, %v", moved, err)
	}

	commitFiles(t, upstream, upstreamDir, map[string]string{"Formula/other.lua": toolFormula})

	changed, err := m.UpdateAll(ctx)
	if err != nil {
		t.Fatalf("UpdateAll() error = %v", err)
	}
	if len(changed) != 1 || changed[0] != "acme/tools" {
		t.Errorf("UpdateAll() = %v", changed)
	}
	if _, err := os.Stat(filepath.Join(tp.Dir, "Formula", "other.lua")); err != nil {
		t.Errorf("update not pulled: %v", err)
	}
}

func TestManager_AddFailureCleansUp(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	_, err := m.Add(context.Background(), "acme/missing", filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected clone error")
	}
	if _, err := os.Stat(filepath.Join(root, "acme", "missing")); !os.IsNotExist(err) {
		t.Error("partial clone should be removed")
	}
}

func TestManager_UpdateUnknown(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	if _, err := m.Update(context.Background(), "acme/none"); !errors.Is(err, ErrTapNotFound) {
		t.Errorf("Update() error = %v, want ErrTapNotFound", err)
	}
}

func TestDefaultURL(t *testing.T) {
	if got := DefaultURL("acme/tools"); got != "https://github.com/acme/tools.git" {
		t.Errorf("DefaultURL() = %q", got)
	}
}
