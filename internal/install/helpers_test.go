package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cbtap/cbtap/internal/artifact"
	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/platform"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// versionScript is a shell script standing in for a release binary.
func versionScript(output string) string {
	return "#!/bin/sh\necho '" + output + "'\n"
}

// releaseArchive builds a .tar.gz holding files under a release directory.
func releaseArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "release/" + name,
			Mode:     0644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type fixture struct {
	prefix    string
	layout    Layout
	installer *Installer
	server    *httptest.Server
	hits      *atomic.Int32
	archive   []byte
}

// newFixture serves one archive whose codebuddy prints "codebuddy <printed>"
// and wires an installer for linux-x86_64-glibc.
func newFixture(t *testing.T, printed string) *fixture {
	t.Helper()

	archive := releaseArchive(t, map[string]string{
		"codebuddy": versionScript("codebuddy " + printed),
		"README.md": "docs",
	})

	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	info, err := platform.FromKey(platform.KeyLinuxX8664Glibc)
	require.NoError(t, err)

	prefix := t.TempDir()
	layout := NewLayout(prefix)
	downloader := artifact.NewDownloader(artifact.DownloaderOptions{Retries: -1, Timeout: 5 * time.Second})

	inst, err := New(Config{
		Layout:   layout,
		Detector: platform.StaticDetector{Info: info},
		Fetcher:  artifact.NewFetcher(downloader, layout.CacheDir(), nil),
		Tester:   NewTester(5 * time.Second),
		Clock:    FixedClock{Time: testTime},
	})
	require.NoError(t, err)

	return &fixture{
		prefix:    prefix,
		layout:    layout,
		installer: inst,
		server:    server,
		hits:      hits,
		archive:   archive,
	}
}

// formula returns a formula for name@version pointing every platform at
// the fixture's archive.
func (fx *fixture) formula(name, version string) *formula.Formula {
	artifacts := make(map[platform.Key]formula.Artifact, len(platform.AllKeys))
	for _, k := range platform.AllKeys {
		artifacts[k] = formula.Artifact{
			URL:    fx.server.URL + "/" + version + "/codebuddy-code_" + k.String() + ".tar.gz",
			SHA256: checksum(fx.archive),
		}
	}
	return &formula.Formula{
		Name:      name,
		Version:   version,
		Artifacts: artifacts,
		Bin:       []string{"codebuddy"},
		Links:     map[string]string{"cbc": "codebuddy"},
		Test:      formula.TestSpec{Args: []string{"--version"}, Expect: version},
	}
}
