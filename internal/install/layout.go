package install

import "path/filepath"

// Layout maps a prefix to the directories cbtap manages:
//
//	<prefix>/Cellar/<formula>/<version>/bin   keg
//	<prefix>/bin                             links into kegs
//	<prefix>/var/cbtap                       lock file
type Layout struct {
	Prefix string
}

// NewLayout returns the layout rooted at prefix.
func NewLayout(prefix string) Layout {
	return Layout{Prefix: filepath.Clean(prefix)}
}

// Cellar is the root of all kegs.
func (l Layout) Cellar() string {
	return filepath.Join(l.Prefix, "Cellar")
}

// Rack holds every installed version of one formula.
func (l Layout) Rack(name string) string {
	return filepath.Join(l.Cellar(), name)
}

// Keg is the install directory of one formula version.
func (l Layout) Keg(name, version string) string {
	return filepath.Join(l.Rack(name), version)
}

// KegBin is the executable directory inside a keg.
func KegBin(keg string) string {
	return filepath.Join(keg, "bin")
}

// BinDir is where keg executables are linked.
func (l Layout) BinDir() string {
	return filepath.Join(l.Prefix, "bin")
}

// LockDir holds the install lock.
func (l Layout) LockDir() string {
	return filepath.Join(l.Prefix, "var", "cbtap")
}

// CacheDir is the default download cache.
func (l Layout) CacheDir() string {
	return filepath.Join(l.Prefix, "cache", "downloads")
}

// TapsDir holds cloned taps.
func (l Layout) TapsDir() string {
	return filepath.Join(l.Prefix, "Library", "Taps")
}
