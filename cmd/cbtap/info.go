package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <formula>",
		Short: "Show a formula's metadata, artifacts and install state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			f, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s: %s\n", f.Name, f.Version)
			if f.Desc != "" {
				fmt.Fprintln(out, f.Desc)
			}
			if f.Homepage != "" {
				fmt.Fprintln(out, f.Homepage)
			}
			if f.License != "" {
				fmt.Fprintf(out, "License: %s\n", f.License)
			}
			fmt.Fprintf(out, "From: %s\n", f.Source)

			current := ""
			if info, err := a.platformInfo(ctx); err == nil {
				if key, err := info.Key(); err == nil {
					current = key.String()
				}
			}

			fmt.Fprintln(out, "\nArtifacts:")
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, key := range f.Keys() {
				marker := " "
				if key.String() == current {
					marker = "*"
				}
				art := f.Artifacts[key]
				fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, key, art.SHA256, art.URL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			inst, err := a.installer()
			if err != nil {
				return err
			}
			receipts, err := inst.Installed(f.Name)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			if len(receipts) == 0 {
				fmt.Fprintln(out, "Not installed")
			}
			for _, r := range receipts {
				fmt.Fprintf(out, "Installed: %s (%s, libc from %s, %s)\n",
					r.Keg, r.Platform, valueOr(r.LibcSource, "n/a"), r.InstalledAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var available bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed formulas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if available {
				reg, err := a.loadRegistry(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, f := range reg.All() {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Version, f.Source)
				}
				return tw.Flush()
			}

			inst, err := a.installer()
			if err != nil {
				return err
			}
			receipts, err := inst.List()
			if err != nil {
				return err
			}
			if len(receipts) == 0 {
				fmt.Fprintln(out, "No formulas installed.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range receipts {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Formula, r.Version, r.Platform)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&available, "available", false, "list formulas from the built-in set and taps instead")
	return cmd
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
