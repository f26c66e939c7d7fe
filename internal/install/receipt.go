package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ReceiptFile is written at the root of every keg.
const ReceiptFile = "INSTALL_RECEIPT.yaml"

// ErrNotInstalled is returned when no receipt exists for a formula.
var ErrNotInstalled = errors.New("not installed")

// Receipt records what was installed into a keg and how it was chosen.
type Receipt struct {
	ID          string    `yaml:"id"`
	Formula     string    `yaml:"formula"`
	Version     string    `yaml:"version"`
	Platform    string    `yaml:"platform"`
	Libc        string    `yaml:"libc,omitempty"`
	LibcSource  string    `yaml:"libc_source,omitempty"`
	URL         string    `yaml:"url"`
	SHA256      string    `yaml:"sha256"`
	Method      string    `yaml:"method"`
	Binaries    []string  `yaml:"binaries"`
	Links       []string  `yaml:"links,omitempty"`
	InstalledAt time.Time `yaml:"installed_at"`

	// Keg is where the receipt was read from. Not persisted.
	Keg string `yaml:"-"`
}

// WriteReceipt stores r in keg.
func WriteReceipt(keg string, r *Receipt) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	tmp := filepath.Join(keg, ReceiptFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(keg, ReceiptFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}

// ReadReceipt loads the receipt of keg. A missing receipt wraps
// ErrNotInstalled.
func ReadReceipt(keg string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(keg, ReceiptFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", keg, ErrNotInstalled)
		}
		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var r Receipt
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse receipt %s: %w", keg, err)
	}
	r.Keg = keg
	return &r, nil
}

// readRack returns the receipts of every keg under rack, sorted by
// version directory name. Kegs without a receipt are skipped.
func readRack(rack string) ([]*Receipt, error) {
	entries, err := os.ReadDir(rack)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rack: %w", err)
	}

	var receipts []*Receipt
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := ReadReceipt(filepath.Join(rack, e.Name()))
		if errors.Is(err, ErrNotInstalled) {
			continue
		}
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}

	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Version < receipts[j].Version
	})
	return receipts, nil
}
