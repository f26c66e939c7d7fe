// Package audit checks formulas against their published artifacts and
// against each other.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cbtap/cbtap/internal/artifact"
	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/platform"
)

// DefaultConcurrency bounds parallel downloads during Verify.
const DefaultConcurrency = 4

// KeyResult is the outcome of checking one platform artifact.
type KeyResult struct {
	Key      platform.Key
	URL      string
	Expected string
	Actual   string
	Method   artifact.VerificationMethod
	Err      error
}

// OK reports whether the artifact matched its checksum.
func (r KeyResult) OK() bool {
	return r.Err == nil
}

// Report collects per-key results for one formula, in canonical key order.
type Report struct {
	Formula string
	Version string
	Results []KeyResult
}

// Failed returns the results that did not verify.
func (r *Report) Failed() []KeyResult {
	var failed []KeyResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Auditor downloads and verifies formula artifacts.
type Auditor struct {
	fetcher     *artifact.Fetcher
	concurrency int
	logger      *slog.Logger
}

// New creates an auditor. A non-positive concurrency uses DefaultConcurrency.
func New(fetcher *artifact.Fetcher, concurrency int, logger *slog.Logger) *Auditor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Auditor{fetcher: fetcher, concurrency: concurrency, logger: logger}
}

// Verify fetches every artifact of f and compares it with its pinned
// checksum. Per-key failures are recorded in the report; the returned
// error is non-nil only when ctx ends first.
func (a *Auditor) Verify(ctx context.Context, f *formula.Formula) (*Report, error) {
	keys := f.Keys()
	report := &Report{Formula: f.Name, Version: f.Version, Results: make([]KeyResult, len(keys))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, key := range keys {
		art := f.Artifacts[key]
		g.Go(func() error {
			res := KeyResult{Key: key, URL: art.URL, Expected: art.SHA256}

			fetched, err := a.fetcher.Fetch(gctx, artifact.Request{
				Formula:    f.Name,
				Version:    f.Version,
				Key:        key,
				Artifact:   art,
				SigningKey: f.SigningKey,
			})
			switch {
			case err == nil:
				res.Actual = art.SHA256
				res.Method = fetched.Method
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				var csErr *artifact.ChecksumError
				if errors.As(err, &csErr) {
					res.Actual = csErr.Actual
				}
				res.Err = err
				a.logger.Warn("artifact failed verification", "formula", f.Name, "platform", key.String(), "error", err)
			}

			report.Results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("audit %s: %w", f.Name, err)
	}
	return report, nil
}

// VerifyAll runs Verify for each formula in turn.
func (a *Auditor) VerifyAll(ctx context.Context, formulas []*formula.Formula) ([]*Report, error) {
	reports := make([]*Report, 0, len(formulas))
	for _, f := range formulas {
		r, err := a.Verify(ctx, f)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
