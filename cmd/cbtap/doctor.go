package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cbtap/cbtap/internal/shell"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show how cbtap sees this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			info, err := a.platformInfo(cmd.Context())
			if err != nil {
				return err
			}
			key, keyErr := info.Key()

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "os\t%s\n", info.OS)
			fmt.Fprintf(tw, "arch\t%s (%s)\n", info.Arch, info.ArchRaw)
			if info.IsLinux() {
				fmt.Fprintf(tw, "libc\t%s\n", info.Libc)
				fmt.Fprintf(tw, "libc source\t%s\n", info.LibcSource)
				if info.Platform != "" {
					fmt.Fprintf(tw, "distro\t%s %s (%s)\n", info.Platform, info.Version, info.Family)
				}
			}
			if keyErr != nil {
				fmt.Fprintf(tw, "platform key\tunsupported: %v\n", keyErr)
			} else {
				fmt.Fprintf(tw, "platform key\t%s\n", key)
			}
			fmt.Fprintf(tw, "prefix\t%s\n", a.layout.Prefix)
			fmt.Fprintf(tw, "cache\t%s\n", a.cfg.Cache)
			if err := tw.Flush(); err != nil {
				return err
			}

			if !onPath(a.layout.BinDir()) {
				fmt.Fprintf(out, "\nWarning: %s is not on PATH. Add it with:\n", a.layout.BinDir())
				fmt.Fprintf(out, "  eval \"$(cbtap shellenv)\"\n")
			}
			return keyErr
		},
	}
}

func onPath(dir string) bool {
	for _, p := range strings.Split(os.Getenv("PATH"), string(os.PathListSeparator)) {
		if p == dir {
			return true
		}
	}
	return false
}

func newShellenvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "shellenv [bash|zsh|fish]",
		Short:     "Print the commands that put the prefix's bin dir on PATH",
		Example:   `  eval "$(cbtap shellenv)"`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := shell.Detect(os.Getenv)
			if len(args) == 1 {
				if sh = shell.Parse(args[0]); !sh.IsValid() {
					return &shell.UnsupportedShellError{Shell: args[0]}
				}
			}
			if !sh.IsValid() {
				sh = shell.ShellBash
			}

			script, err := shell.Env(sh, a.layout.Prefix, a.layout.BinDir())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), script)
			return nil
		},
	}
}
