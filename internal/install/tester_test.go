package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbtap/cbtap/internal/formula"
)

// kegWith lays out a keg bin dir by calling setup, and returns the keg.
func kegWith(t *testing.T, setup func(bin string)) string {
	t.Helper()
	keg := filepath.Join(t.TempDir(), "Cellar", "codebuddy-code", "2.23.0")
	bin := KegBin(keg)
	require.NoError(t, os.MkdirAll(bin, 0755))
	setup(bin)
	return keg
}

func writeScript(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func testerFormula() *formula.Formula {
	return &formula.Formula{
		Name:    "codebuddy-code",
		Version: "2.23.0",
		Bin:     []string{"codebuddy"},
		Links:   map[string]string{"cbc": "codebuddy"},
		Test:    formula.TestSpec{Args: []string{"--version"}, Expect: "2.23.0"},
	}
}

func TestTester(t *testing.T) {
	good := versionScript("codebuddy 2.23.0")

	tests := []struct {
		name     string
		setup    func(t *testing.T, bin string)
		timeout  time.Duration
		wantStep string
	}{
		{
			name: "passes",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), good, 0755)
				require.NoError(t, os.Symlink("codebuddy", filepath.Join(bin, "cbc")))
			},
		},
		{
			name:     "missing_binary",
			setup:    func(t *testing.T, bin string) {},
			wantStep: StepExists,
		},
		{
			name: "not_executable",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), good, 0644)
			},
			wantStep: StepExecutable,
		},
		{
			name: "missing_link",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), good, 0755)
			},
			wantStep: StepLink,
		},
		{
			name: "dangling_link",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), good, 0755)
				require.NoError(t, os.Symlink("nowhere", filepath.Join(bin, "cbc")))
			},
			wantStep: StepLink,
		},
		{
			name: "link_to_other_file",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), good, 0755)
				writeScript(t, filepath.Join(bin, "other"), good, 0755)
				require.NoError(t, os.Symlink("other", filepath.Join(bin, "cbc")))
			},
			wantStep: StepLink,
		},
		{
			name: "wrong_version",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), versionScript("codebuddy 2.22.0"), 0755)
				require.NoError(t, os.Symlink("codebuddy", filepath.Join(bin, "cbc")))
			},
			wantStep: StepVersion,
		},
		{
			name: "command_fails",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), "#!/bin/sh\necho 2.23.0\nexit 3\n", 0755)
				require.NoError(t, os.Symlink("codebuddy", filepath.Join(bin, "cbc")))
			},
			wantStep: StepVersion,
		},
		{
			name: "timeout",
			setup: func(t *testing.T, bin string) {
				writeScript(t, filepath.Join(bin, "codebuddy"), "#!/bin/sh\nexec sleep 5\n", 0755)
				require.NoError(t, os.Symlink("codebuddy", filepath.Join(bin, "cbc")))
			},
			timeout:  100 * time.Millisecond,
			wantStep: StepVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keg := kegWith(t, func(bin string) { tt.setup(t, bin) })

			err := NewTester(tt.timeout).Test(context.Background(), keg, testerFormula())
			if tt.wantStep == "" {
				assert.NoError(t, err)
				return
			}

			var testErr *TestError
			require.True(t, errors.As(err, &testErr), "want *TestError, got %v", err)
			assert.Equal(t, tt.wantStep, testErr.Step)
		})
	}
}

func TestTester_CustomExpect(t *testing.T) {
	keg := kegWith(t, func(bin string) {
		writeScript(t, filepath.Join(bin, "codebuddy"), "#!/bin/sh\necho \"build $1\"\n", 0755)
		require.NoError(t, os.Symlink("codebuddy", filepath.Join(bin, "cbc")))
	})

	f := testerFormula()
	f.Test = formula.TestSpec{Args: []string{"v2"}, Expect: "build v2"}
	assert.NoError(t, NewTester(0).Test(context.Background(), keg, f))
}

func TestNewTesterDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTestTimeout, NewTester(0).timeout)
	assert.Equal(t, time.Second, NewTester(time.Second).timeout)
}
