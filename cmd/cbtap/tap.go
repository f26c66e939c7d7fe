package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Manage git repositories of formulas",
	}
	cmd.AddCommand(
		newTapAddCmd(a),
		newTapUpdateCmd(a),
		newTapListCmd(a),
		newTapRemoveCmd(a),
	)
	return cmd
}

func newTapAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <owner/repo> [url]",
		Short: "Clone a tap (default https://github.com/<owner>/<repo>.git)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 2 {
				url = args[1]
			}
			t, err := a.taps.Add(cmd.Context(), args[0], url)
			if err != nil {
				return err
			}

			reg, err := a.loadRegistry(cmd.Context())
			if err != nil {
				return fmt.Errorf("tap %s added but its formulas do not load: %w", t.Name, err)
			}
			count := 0
			for _, f := range reg.All() {
				if f.Source == t.Name {
					count++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "==> Tapped %s (%d formula(s))\n", t.Name, count)
			return nil
		},
	}
}

func newTapUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [owner/repo]",
		Short: "Pull the latest formulas for one tap or all taps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				moved, err := a.taps.Update(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if moved {
					fmt.Fprintf(out, "==> Updated %s\n", args[0])
				} else {
					fmt.Fprintf(out, "==> %s is up to date\n", args[0])
				}
				return nil
			}

			changed, err := a.taps.UpdateAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(changed) == 0 {
				fmt.Fprintln(out, "==> All taps are up to date")
			}
			for _, name := range changed {
				fmt.Fprintf(out, "==> Updated %s\n", name)
			}
			return nil
		},
	}
}

func newTapListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List taps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			taps, err := a.taps.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range taps {
				head := t.Head
				if len(head) > 12 {
					head = head[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, head, t.URL)
			}
			return tw.Flush()
		},
	}
}

func newTapRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <owner/repo>",
		Aliases: []string{"untap"},
		Short:   "Delete a tap's clone",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.taps.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "==> Untapped %s\n", args[0])
			return nil
		},
	}
}
