package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbtap/cbtap/internal/formula"
)

// DefaultTestTimeout bounds the version command.
const DefaultTestTimeout = 30 * time.Second

// Test steps, in the order they run.
const (
	StepExists     = "exists"
	StepExecutable = "executable"
	StepLink       = "link"
	StepVersion    = "version"
)

// TestError reports the first failed post-install check.
type TestError struct {
	Step string
	Path string
	Err  error
}

func (e *TestError) Error() string {
	return fmt.Sprintf("post-install %s check failed for %s: %v", e.Step, e.Path, e.Err)
}

func (e *TestError) Unwrap() error {
	return e.Err
}

// Tester verifies a keg after installation.
type Tester struct {
	timeout time.Duration
}

// NewTester creates a tester; a non-positive timeout uses DefaultTestTimeout.
func NewTester(timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	return &Tester{timeout: timeout}
}

// Test checks keg against f and stops at the first failure.
func (t *Tester) Test(ctx context.Context, keg string, f *formula.Formula) error {
	bin := KegBin(keg)
	main := filepath.Join(bin, f.MainBinary())

	info, err := os.Stat(main)
	if err != nil {
		return &TestError{Step: StepExists, Path: main, Err: err}
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
		return &TestError{Step: StepExecutable, Path: main, Err: fmt.Errorf("mode %v is not executable", info.Mode())}
	}

	for _, alias := range f.LinkNames() {
		if err := checkLink(filepath.Join(bin, alias), filepath.Join(bin, f.Links[alias])); err != nil {
			return &TestError{Step: StepLink, Path: filepath.Join(bin, alias), Err: err}
		}
	}

	return t.checkVersion(ctx, main, f)
}

func checkLink(link, target string) error {
	if _, err := os.Lstat(link); err != nil {
		return err
	}
	linkInfo, err := os.Stat(link)
	if err != nil {
		return fmt.Errorf("dangling link: %w", err)
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !os.SameFile(linkInfo, targetInfo) {
		return fmt.Errorf("does not resolve to %s", target)
	}
	return nil
}

func (t *Tester) checkVersion(ctx context.Context, main string, f *formula.Formula) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, main, f.Test.Args...).CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", t.timeout)
		}
		return &TestError{Step: StepVersion, Path: main, Err: err}
	}

	if !strings.Contains(string(out), f.Test.Expect) {
		return &TestError{
			Step: StepVersion,
			Path: main,
			Err:  fmt.Errorf("output %q does not contain %q", strings.TrimSpace(string(out)), f.Test.Expect),
		}
	}
	return nil
}
