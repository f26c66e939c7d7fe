package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cbtap/cbtap/formulas"
	"github.com/cbtap/cbtap/internal/artifact"
	"github.com/cbtap/cbtap/internal/config"
	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/install"
	"github.com/cbtap/cbtap/internal/platform"
	"github.com/cbtap/cbtap/internal/tap"
)

// globalFlags override the matching CBTAP_* variables.
type globalFlags struct {
	prefix   string
	libc     string
	logLevel string
}

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	layout   install.Layout
	detector platform.Detector
	info     *platform.Info
	fetcher  *artifact.Fetcher
	taps     *tap.Manager

	registry *formula.Registry
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	a := &app{}

	root := &cobra.Command{
		Use:   "cbtap",
		Short: "Install prebuilt CLI releases from formula taps",
		Long: `cbtap installs prebuilt command-line tools described by Lua formulas.

Each formula pins one release: a download URL and SHA256 per platform
(macOS arm64/x86_64, Linux arm64/x86_64 with glibc or musl). cbtap picks
the artifact for this machine, verifies it, places it in
<prefix>/Cellar/<formula>/<version> and links it into <prefix>/bin.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(flags, cmd.ErrOrStderr())
		},
	}
	root.SetVersionTemplate("cbtap {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&flags.prefix, "prefix", "", "install prefix (env CBTAP_PREFIX, default ~/.cbtap)")
	pf.StringVar(&flags.libc, "libc", "", "force libc flavor on Linux: glibc or musl (env CBTAP_LIBC)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (env CBTAP_LOG_LEVEL)")

	root.AddCommand(
		newInstallCmd(a),
		newUninstallCmd(a),
		newTestCmd(a),
		newInfoCmd(a),
		newListCmd(a),
		newAuditCmd(a),
		newPinCmd(a),
		newDoctorCmd(a),
		newShellenvCmd(a),
		newTapCmd(a),
	)
	return root
}

// setup loads configuration, applies flags and wires shared components.
func (a *app) setup(flags *globalFlags, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.prefix != "" {
		prefix, err := filepath.Abs(flags.prefix)
		if err != nil {
			return fmt.Errorf("resolve prefix: %w", err)
		}
		cfg.Prefix = prefix
		if os.Getenv("CBTAP_CACHE") == "" {
			cfg.Cache = ""
		}
		if err := cfg.Sanitize(); err != nil {
			return err
		}
	}
	if flags.libc != "" {
		cfg.Libc = flags.libc
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(logOut)
	if err != nil {
		return err
	}
	libc, err := platform.ParseLibc(cfg.Libc)
	if err != nil {
		return err
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = -1
	}
	downloader := artifact.NewDownloader(artifact.DownloaderOptions{
		Timeout: cfg.HTTPTimeout,
		Retries: retries,
		Logger:  logger,
	})

	a.cfg = cfg
	a.logger = logger
	a.layout = install.NewLayout(cfg.Prefix)
	a.detector = platform.NewDetector(libc)
	a.fetcher = artifact.NewFetcher(downloader, cfg.Cache, logger)
	a.taps = tap.NewManager(a.layout.TapsDir(), logger)
	return nil
}

// platformInfo detects the host once.
func (a *app) platformInfo(ctx context.Context) (*platform.Info, error) {
	if a.info != nil {
		return a.info, nil
	}
	info, err := a.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}
	a.info = info
	return info, nil
}

// loadRegistry loads the embedded formulas and then every tap, so taps shadow
// built-ins of the same name.
func (a *app) loadRegistry(ctx context.Context) (*formula.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}

	info, err := a.platformInfo(ctx)
	if err != nil {
		if !errors.Is(err, platform.ErrUnsupportedPlatform) {
			return nil, err
		}
		a.logger.Warn("platform not supported, evaluating formulas without platform info", "error", err)
		info = nil
	}

	reg := formula.NewRegistry(formula.NewParser(info), a.logger)
	if err := reg.Load(ctx, formula.Source{Name: formulas.Name, FS: formulas.FS}); err != nil {
		return nil, err
	}

	sources, err := a.taps.Sources()
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := reg.Load(ctx, src); err != nil {
			return nil, fmt.Errorf("load tap %s: %w", src.Name, err)
		}
	}

	a.registry = reg
	return reg, nil
}

func (a *app) lookup(ctx context.Context, name string) (*formula.Formula, error) {
	reg, err := a.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Lookup(name)
}

func (a *app) installer() (*install.Installer, error) {
	return install.New(install.Config{
		Layout:   a.layout,
		Detector: a,
		Fetcher:  a.fetcher,
		Tester:   install.NewTester(a.cfg.TestTimeout),
		Logger:   a.logger,
	})
}

// Detect lets the app serve as the installer's detector so the host is
// probed once per command.
func (a *app) Detect(ctx context.Context) (*platform.Info, error) {
	return a.platformInfo(ctx)
}
