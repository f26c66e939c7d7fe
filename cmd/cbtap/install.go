package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbtap/cbtap/internal/install"
)

func newInstallCmd(a *app) *cobra.Command {
	var opts install.Options

	cmd := &cobra.Command{
		Use:   "install <formula>...",
		Short: "Download, verify and link formulas",
		Example: `  cbtap install codebuddy-code
  cbtap install codebuddy-code@2.22.0
  cbtap --libc musl install codebuddy-code`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			inst, err := a.installer()
			if err != nil {
				return err
			}

			for _, name := range args {
				f, err := a.lookup(ctx, name)
				if err != nil {
					return err
				}

				res, err := inst.Install(ctx, f, opts)
				var testErr *install.TestError
				switch {
				case errors.As(err, &testErr):
					fmt.Fprintf(out, "==> %s %s installed but broken\n", f.Name, f.Version)
					return fmt.Errorf("%s: %w", f.Name, err)
				case err != nil:
					return fmt.Errorf("install %s: %w", f.Name, err)
				case res.Skipped:
					fmt.Fprintf(out, "==> %s %s is already installed (use --force to reinstall)\n", f.Name, f.Version)
				default:
					fmt.Fprintf(out, "==> Installed %s %s (%s, %s)\n", f.Name, f.Version, res.Receipt.Platform, res.Receipt.Method)
					fmt.Fprintf(out, "    %s\n", res.Keg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "reinstall even if the version is already installed")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace files in the bin dir not managed by cbtap")
	cmd.Flags().BoolVar(&opts.SkipTest, "skip-test", false, "do not run the post-install test")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <formula>...",
		Aliases: []string{"remove", "rm"},
		Short:   "Unlink and remove every installed version of formulas",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.installer()
			if err != nil {
				return err
			}
			for _, name := range args {
				receipts, err := inst.Uninstall(cmd.Context(), name)
				if err != nil {
					return err
				}
				for _, r := range receipts {
					fmt.Fprintf(cmd.OutOrStdout(), "==> Uninstalled %s %s\n", r.Formula, r.Version)
				}
			}
			return nil
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <formula>...",
		Short: "Run the post-install checks against installed formulas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inst, err := a.installer()
			if err != nil {
				return err
			}
			for _, name := range args {
				f, err := a.lookup(ctx, name)
				if err != nil {
					return err
				}
				if err := inst.Test(ctx, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "==> %s %s passed\n", f.Name, f.Version)
			}
			return nil
		},
	}
}
