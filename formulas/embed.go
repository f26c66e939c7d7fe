// Package formulas embeds the builtin tap shipped with cbtap.
package formulas

import "embed"

// Name is the source name the builtin tap is registered under.
const Name = "builtin"

// FS holds Formula/*.lua.
//
//go:embed Formula/*.lua
var FS embed.FS
