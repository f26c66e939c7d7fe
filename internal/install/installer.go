// Package install places formula binaries into kegs under a prefix, links
// them into the prefix's bin dir, and verifies the result.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cbtap/cbtap/internal/artifact"
	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/platform"
)

// ErrInvalidName is returned for names that cannot identify a rack.
var ErrInvalidName = errors.New("invalid formula name")

// Options controls a single install.
type Options struct {
	// Force reinstalls over an existing keg.
	Force bool
	// Overwrite replaces bin dir entries not managed by cbtap.
	Overwrite bool
	// SkipTest skips the post-install test.
	SkipTest bool
}

// Result describes a finished install.
type Result struct {
	Keg      string
	Receipt  *Receipt
	Linked   []string
	Cached   bool
	Skipped  bool
	Platform *platform.Info
}

// Config wires an Installer.
type Config struct {
	Layout   Layout
	Detector platform.Detector
	Fetcher  *artifact.Fetcher
	Tester   *Tester
	Clock    Clock
	Logger   *slog.Logger
}

// Installer installs and removes formulas under one prefix.
type Installer struct {
	layout   Layout
	detector platform.Detector
	fetcher  *artifact.Fetcher
	tester   *Tester
	linker   linker
	clock    Clock
	logger   *slog.Logger
}

// New creates an installer.
func New(cfg Config) (*Installer, error) {
	if cfg.Layout.Prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("platform detector is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Tester == nil {
		cfg.Tester = NewTester(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Installer{
		layout:   cfg.Layout,
		detector: cfg.Detector,
		fetcher:  cfg.Fetcher,
		tester:   cfg.Tester,
		linker:   linker{layout: cfg.Layout},
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Layout returns the directories this installer manages.
func (i *Installer) Layout() Layout {
	return i.layout
}

// Install fetches, verifies, extracts, links and tests f. Nothing under the
// Cellar changes until the artifact is verified, and the receipt is written
// only once the links are in place. There is no rollback after that: a
// failed post-install test leaves the keg and links in place and returns a
// *TestError alongside the result.
func (i *Installer) Install(ctx context.Context, f *formula.Formula, opts Options) (*Result, error) {
	lock, err := AcquireLock(ctx, i.layout.LockDir(), i.clock)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	info, err := i.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	key, art, err := f.Resolve(info)
	if err != nil {
		return nil, err
	}

	rack, err := i.rack(f.Name)
	if err != nil {
		return nil, err
	}
	if !formula.ValidVersion(f.Version) {
		return nil, fmt.Errorf("%s: invalid version %q", f.Name, f.Version)
	}

	log := i.logger.With("formula", f.Name, "version", f.Version, "platform", key.String())
	keg := filepath.Join(rack, f.Version)
	result := &Result{Keg: keg, Platform: info}

	if existing, err := ReadReceipt(keg); err == nil {
		if !opts.Force {
			log.Info("already installed", "path", keg)
			result.Receipt = existing
			result.Skipped = true
			return result, nil
		}
		log.Info("reinstalling", "path", keg)
	}

	fetched, err := i.fetcher.Fetch(ctx, artifact.Request{
		Formula:    f.Name,
		Version:    f.Version,
		Key:        key,
		Artifact:   art,
		SigningKey: f.SigningKey,
	})
	if err != nil {
		return nil, err
	}
	result.Cached = fetched.Cached

	if err := stage(rack, keg, fetched.Path, f); err != nil {
		return nil, err
	}

	names := append(append([]string(nil), f.Bin...), f.LinkNames()...)
	if err := i.linker.link(KegBin(keg), names, opts.Overwrite); err != nil {
		return result, err
	}
	result.Linked = names

	receipt := &Receipt{
		ID:          uuid.NewString(),
		Formula:     f.Name,
		Version:     f.Version,
		Platform:    key.String(),
		Libc:        info.Libc,
		LibcSource:  info.LibcSource,
		URL:         art.URL,
		SHA256:      art.SHA256,
		Method:      fetched.Method.String(),
		Binaries:    append([]string(nil), f.Bin...),
		Links:       f.LinkNames(),
		InstalledAt: i.clock.Now().UTC(),
		Keg:         keg,
	}
	if err := WriteReceipt(keg, receipt); err != nil {
		return result, err
	}
	result.Receipt = receipt
	log.Info("installed", "path", keg, "method", receipt.Method, "cached", fetched.Cached)

	if opts.SkipTest {
		return result, nil
	}
	if err := i.tester.Test(ctx, keg, f); err != nil {
		log.Error("post-install test failed", "error", err)
		return result, err
	}
	log.Debug("post-install test passed")
	return result, nil
}

// stage extracts the verified archive into a scratch keg beside keg and
// swaps it into place, so an extraction failure leaves any previous keg
// untouched.
func stage(rack, keg, archive string, f *formula.Formula) error {
	if err := os.MkdirAll(rack, 0755); err != nil {
		return fmt.Errorf("create rack: %w", err)
	}
	tmp, err := os.MkdirTemp(rack, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging keg: %w", err)
	}
	defer os.RemoveAll(tmp)

	tmpBin := KegBin(tmp)
	if err := artifact.ExtractFiles(archive, tmpBin, f.Bin); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := createAliases(tmpBin, f); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("staging keg: %w", err)
	}

	if err := os.RemoveAll(keg); err != nil {
		return fmt.Errorf("clear keg: %w", err)
	}
	if err := os.Rename(tmp, keg); err != nil {
		return fmt.Errorf("move keg into place: %w", err)
	}
	return nil
}

// createAliases makes each link a relative symlink beside its target.
func createAliases(kegBin string, f *formula.Formula) error {
	for _, alias := range f.LinkNames() {
		path := filepath.Join(kegBin, alias)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", alias, err)
		}
		if err := os.Symlink(f.Links[alias], path); err != nil {
			return fmt.Errorf("create link %s: %w", alias, err)
		}
	}
	return nil
}

// Test runs the post-install checks against the installed keg of f.
func (i *Installer) Test(ctx context.Context, f *formula.Formula) error {
	keg := i.layout.Keg(f.Name, f.Version)
	if _, err := ReadReceipt(keg); err != nil {
		return fmt.Errorf("%s %s: %w", f.Name, f.Version, err)
	}
	return i.tester.Test(ctx, keg, f)
}

// Uninstall unlinks and removes every keg of name.
func (i *Installer) Uninstall(ctx context.Context, name string) ([]*Receipt, error) {
	lock, err := AcquireLock(ctx, i.layout.LockDir(), i.clock)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	rack, err := i.rack(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(rack); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	receipts, err := readRack(rack)
	if err != nil {
		return nil, err
	}

	removed, err := i.linker.unlink(rack)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(rack); err != nil {
		return nil, fmt.Errorf("remove %s: %w", rack, err)
	}

	i.logger.Info("uninstalled", "formula", name, "kegs", len(receipts), "unlinked", removed)
	return receipts, nil
}

// Installed returns the receipts of every installed version of name.
func (i *Installer) Installed(name string) ([]*Receipt, error) {
	rack, err := i.rack(name)
	if err != nil {
		return nil, err
	}
	return readRack(rack)
}

// rack returns the rack of name. Names that are not formula names, or that
// would resolve anywhere but directly under the Cellar, are rejected.
func (i *Installer) rack(name string) (string, error) {
	if !formula.ValidName(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	rack := i.layout.Rack(name)
	if rel, err := filepath.Rel(i.layout.Cellar(), rack); err != nil || rel != name {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return rack, nil
}

// List returns receipts for every installed formula, ordered by name.
func (i *Installer) List() ([]*Receipt, error) {
	entries, err := os.ReadDir(i.layout.Cellar())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cellar: %w", err)
	}

	var all []*Receipt
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		receipts, err := readRack(i.layout.Rack(e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, receipts...)
	}
	return all, nil
}
