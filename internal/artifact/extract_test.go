package artifact

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// tarEntry is one member of a test archive.
type tarEntry struct {
	Name     string
	Body     string
	Typeflag byte
	Linkname string
}

// buildTarGz returns the bytes of a .tar.gz containing entries in order.
func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		typ := e.Typeflag
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{Name: e.Name, Mode: 0644, Typeflag: typ, Linkname: e.Linkname}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(e.Body))
		}
		if typ == tar.TypeDir {
			hdr.Mode = 0755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.Name, err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write %s: %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractFiles(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
		want    []string
		wantErr string
	}{
		{
			name:    "top_level_binary",
			entries: []tarEntry{{Name: "codebuddy", Body: "#!/bin/sh\n"}, {Name: "README.md", Body: "docs"}},
			want:    []string{"codebuddy"},
		},
		{
			name: "nested_binary",
			entries: []tarEntry{
				{Name: "codebuddy-code_Linux_x86_64/", Typeflag: tar.TypeDir},
				{Name: "codebuddy-code_Linux_x86_64/codebuddy", Body: "bin"},
			},
			want: []string{"codebuddy"},
		},
		{
			name:    "multiple_binaries",
			entries: []tarEntry{{Name: "a", Body: "1"}, {Name: "b", Body: "2"}},
			want:    []string{"a", "b"},
		},
		{
			name:    "symlink_is_not_a_binary",
			entries: []tarEntry{{Name: "codebuddy", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}},
			want:    []string{"codebuddy"},
			wantErr: "not found in archive: codebuddy",
		},
		{
			name:    "path_traversal",
			entries: []tarEntry{{Name: "../../codebuddy", Body: "evil"}},
			want:    []string{"codebuddy"},
			wantErr: "illegal file path",
		},
		{
			name:    "missing_binary",
			entries: []tarEntry{{Name: "other", Body: "x"}},
			want:    []string{"codebuddy", "cbc"},
			wantErr: "not found in archive: cbc, codebuddy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := writeFile(t, dir, "a.tar.gz", buildTarGz(t, tt.entries))
			dest := filepath.Join(dir, "out")

			err := ExtractFiles(archive, dest, tt.want)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFiles() error = %v", err)
			}

			for _, name := range tt.want {
				info, err := os.Stat(filepath.Join(dest, name))
				if err != nil {
					t.Fatalf("stat %s: %v", name, err)
				}
				if info.Mode().Perm() != 0755 {
					t.Errorf("%s mode = %v, want 0755", name, info.Mode().Perm())
				}
			}
		})
	}
}

func TestExtractFiles_NotGzip(t *testing.T) {
	dir := t.TempDir()
	archive := writeFile(t, dir, "a.tar.gz", []byte("plain text"))
	if err := ExtractFiles(archive, filepath.Join(dir, "out"), []string{"x"}); err == nil {
		t.Error("expected gzip error")
	}
}
