package shell

import (
	"path/filepath"
	"strings"
)

// Parse maps a shell name or binary path ("zsh", "/usr/bin/fish") to a
// ShellType.
func Parse(s string) ShellType {
	switch strings.ToLower(filepath.Base(s)) {
	case "bash":
		return ShellBash
	case "zsh":
		return ShellZsh
	case "fish":
		return ShellFish
	default:
		return ShellUnknown
	}
}

// Detect reads the login shell from the SHELL variable via getenv.
func Detect(getenv func(string) string) ShellType {
	if sh := getenv("SHELL"); sh != "" {
		return Parse(sh)
	}
	return ShellUnknown
}
