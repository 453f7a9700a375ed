package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out    string
		filter repository.PolicyFilter
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored policies to an XLSX workbook",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return usagef("--out is required")
			}
			if filter.MinConfidence < 0 || filter.MinConfidence > 1 {
				return usagef("--min-confidence must be between 0 and 1")
			}
			ctx := cmd.Context()
			st, err := a.openRepositories(ctx)
			if err != nil {
				return err
			}
			defer st.db.Close()
			return writeWorkbook(ctx, a, st.policies, filter, out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output XLSX path")
	f.Float64Var(&filter.MinConfidence, "min-confidence", 0, "only policies at or above this confidence")
	f.BoolVar(&filter.OnlyNeedsReview, "needs-review", false, "only policies flagged for review")
	f.StringVar(&filter.Insurer, "insurer", "", "only policies from this insurer")
	f.IntVar(&filter.Limit, "limit", 0, "maximum rows, 0 for all")
	return cmd
}
