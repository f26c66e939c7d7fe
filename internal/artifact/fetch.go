package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/platform"
)

// Request names one artifact of one formula.
type Request struct {
	Formula    string
	Version    string
	Key        platform.Key
	Artifact   formula.Artifact
	SigningKey string
}

// Result describes a verified archive on disk.
type Result struct {
	Path     string
	Method   VerificationMethod
	Cached   bool
	Duration time.Duration
}

// Fetcher downloads artifacts into a cache and verifies them.
type Fetcher struct {
	downloader *Downloader
	cacheDir   string
	logger     *slog.Logger
}

// NewFetcher creates a fetcher caching under cacheDir.
func NewFetcher(downloader *Downloader, cacheDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{downloader: downloader, cacheDir: cacheDir, logger: logger}
}

// CachePath returns where the archive for req is stored:
// <cache>/<formula>/<version>/<file name from URL>.
func (f *Fetcher) CachePath(req Request) (string, error) {
	name, err := urlFileName(req.Artifact.URL)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.cacheDir, req.Formula, req.Version, name), nil
}

// Fetch returns a verified copy of the artifact, downloading it if the
// cache has no matching file. A checksum mismatch on a fresh download is
// fatal: the file is deleted and an error wrapping ErrChecksumMismatch is
// returned without retrying.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	cachePath, err := f.CachePath(req)
	if err != nil {
		return nil, err
	}

	log := f.logger.With("formula", req.Formula, "version", req.Version, "platform", req.Key.String())
	result := &Result{Path: cachePath}

	if fileExists(cachePath) {
		if err := VerifySHA256(cachePath, req.Artifact.SHA256); err == nil {
			result.Cached = true
			log.Debug("using cached artifact", "path", cachePath)
		} else {
			log.Warn("cached artifact is stale, downloading again", "path", cachePath, "error", err)
			if err := os.Remove(cachePath); err != nil {
				return nil, fmt.Errorf("remove stale cache entry: %w", err)
			}
		}
	}

	if !result.Cached {
		log.Info("downloading", "url", req.Artifact.URL)
		if err := f.downloader.DownloadToFile(ctx, req.Artifact.URL, cachePath); err != nil {
			return nil, fmt.Errorf("download artifact: %w", err)
		}
		if err := VerifySHA256(cachePath, req.Artifact.SHA256); err != nil {
			os.Remove(cachePath)
			if errors.Is(err, ErrChecksumMismatch) {
				log.Error("checksum mismatch", "url", req.Artifact.URL, "error", err)
			}
			return nil, err
		}
	}
	result.Method = VerificationSHA256

	if req.Artifact.SignatureURL != "" {
		if err := f.verifySignature(ctx, req, cachePath); err != nil {
			return nil, err
		}
		result.Method = VerificationGPG
	}

	result.Duration = time.Since(start)
	log.Debug("artifact verified", "method", result.Method.String(), "cached", result.Cached)
	return result, nil
}

func (f *Fetcher) verifySignature(ctx context.Context, req Request, archivePath string) error {
	if req.SigningKey == "" {
		return fmt.Errorf("signature declared for %s but no signing key", req.Key)
	}

	name, err := urlFileName(req.Artifact.SignatureURL)
	if err != nil {
		return err
	}
	sigPath := filepath.Join(filepath.Dir(archivePath), name)

	if err := f.downloader.DownloadToFile(ctx, req.Artifact.SignatureURL, sigPath); err != nil {
		return fmt.Errorf("download signature: %w", err)
	}
	if err := VerifySignature(archivePath, sigPath, req.SigningKey); err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", req.Key, err)
	}
	return nil
}

func urlFileName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", raw)
	}
	return name, nil
}
