package artifact

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractFiles copies the named regular files out of a .tar.gz archive into
// destDir with mode 0755. Entries are matched by base name wherever they sit
// in the archive; the first match wins. Every name must be found.
func ExtractFiles(archivePath, destDir string, names []string) error {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tarReader := tar.NewReader(gzipReader)
	for len(wanted) > 0 {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}
		if !safeEntry(header.Name) {
			return fmt.Errorf("illegal file path in archive: %s", header.Name)
		}

		base := path.Base(header.Name)
		if !wanted[base] {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, base), tarReader); err != nil {
			return fmt.Errorf("extract %s: %w", base, err)
		}
		delete(wanted, base)
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for n := range wanted {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return fmt.Errorf("not found in archive: %s", strings.Join(missing, ", "))
	}
	return nil
}

// safeEntry rejects absolute paths and any ".." component.
func safeEntry(name string) bool {
	if strings.HasPrefix(name, "/") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func writeExecutable(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return os.Rename(tmpPath, dest)
}
