package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cbtap/cbtap/internal/formula"
)

func newPinCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "pin <formula> <dir>",
		Short: "Freeze the current release as <name>@<version>.lua",
		Long: `Freeze the current release of a formula as a versioned formula.

The formula is written to <dir>/<name>@<version>.lua so it can be
committed to a tap before the unversioned formula moves to a new release.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if f.IsPinned() {
				return fmt.Errorf("%s is already a versioned formula", f.Name)
			}

			pinned := f.Pin()
			src, err := formula.NewGenerator().Generate(pinned)
			if err != nil {
				return fmt.Errorf("generate %s: %w", pinned.Name, err)
			}

			dir := args[1]
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
			path := filepath.Join(dir, pinned.Name+".lua")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(src), 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "==> Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
