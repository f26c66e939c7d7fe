package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbtap/cbtap/internal/audit"
	"github.com/cbtap/cbtap/internal/formula"
)

var errAuditFailed = errors.New("audit found problems")

func newAuditCmd(a *app) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "audit [formula...]",
		Short: "Check formulas for metadata gaps, reused checksums and bad artifacts",
		Long: `Check formulas for metadata gaps, reused checksums and bad artifacts.

Without arguments every known formula is audited. Checksum reuse is
always checked across the whole formula set. With --online each
platform artifact is downloaded and compared with its pinned SHA256.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			reg, err := a.loadRegistry(ctx)
			if err != nil {
				return err
			}

			targets := reg.All()
			if len(args) > 0 {
				targets = targets[:0:0]
				for _, name := range args {
					f, err := reg.Lookup(name)
					if err != nil {
						return err
					}
					targets = append(targets, f)
				}
			}

			problems := 0
			for _, f := range targets {
				for _, finding := range audit.Lint(f) {
					fmt.Fprintf(out, "lint: %s\n", finding)
					problems++
				}
			}
			for _, dup := range audit.CheckUniqueChecksums(reg.All()) {
				if !touches(dup, targets) {
					continue
				}
				fmt.Fprintf(out, "checksum: %s\n", dup)
				problems++
			}

			if online {
				auditor := audit.New(a.fetcher, a.cfg.AuditConcurrency, a.logger)
				reports, err := auditor.VerifyAll(ctx, targets)
				if err != nil {
					return err
				}
				for _, r := range reports {
					for _, res := range r.Results {
						if res.OK() {
							fmt.Fprintf(out, "ok: %s %s %s\n", r.Formula, res.Key, res.Method)
							continue
						}
						fmt.Fprintf(out, "FAIL: %s %s: %v\n", r.Formula, res.Key, res.Err)
						problems++
					}
				}
			}

			if problems > 0 {
				return fmt.Errorf("%w: %d", errAuditFailed, problems)
			}
			fmt.Fprintf(out, "==> %d formula(s) passed\n", len(targets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "download every artifact and verify its checksum")
	return cmd
}

func touches(dup audit.Duplicate, targets []*formula.Formula) bool {
	for _, f := range targets {
		for _, name := range dup.Formulas {
			if f.Name == name {
				return true
			}
		}
	}
	return false
}
