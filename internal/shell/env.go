package shell

import (
	"fmt"
	"strings"
)

// Env returns the script that prepends binDir to PATH and exports
// CBTAP_PREFIX. Running it twice does not duplicate the PATH entry.
func Env(sh ShellType, prefix, binDir string) (string, error) {
	var b strings.Builder

	switch sh {
	case ShellBash, ShellZsh:
		fmt.Fprintf(&b, "export CBTAP_PREFIX=%s;\n", posixQuote(prefix))
		fmt.Fprintf(&b, "case \":${PATH}:\" in *:%s:*) ;; *) export PATH=%s\"${PATH+:$PATH}\";; esac\n",
			posixQuote(binDir), posixQuote(binDir))
	case ShellFish:
		fmt.Fprintf(&b, "set -gx CBTAP_PREFIX %s;\n", fishQuote(prefix))
		fmt.Fprintf(&b, "fish_add_path -gP %s;\n", fishQuote(binDir))
	default:
		return "", &UnsupportedShellError{Shell: sh.String()}
	}

	return b.String(), nil
}

func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func fishQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
