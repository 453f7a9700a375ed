package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/core/ocr"
)

func newRulesCmd(a *app) *cobra.Command {
	var (
		lang   string
		file   string
		sample string
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List field rules, validate a custom table with --file, or try them on --sample text",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rs  fields.RuleSet
				err error
			)
			if file != "" {
				rs, err = fields.LoadRuleSetFile(file)
			} else {
				tag, ok := language.ParseTag(lang)
				if !ok || tag == language.Unknown {
					return usagef("--lang must be en or he, got %q", lang)
				}
				rs, err = fields.EmbeddedRuleSet(tag.Code())
			}
			if err != nil {
				return common.NewAppError(common.CodeConfig, "load rules", err)
			}
			eng, err := fields.NewEngine(rs)
			if err != nil {
				return common.NewAppError(common.CodeConfig, "invalid rules", fmt.Errorf("%w: %v", common.ErrValidation, err))
			}

			var text string
			if sample != "" {
				b, err := os.ReadFile(sample)
				if err != nil {
					return usagef("read --sample: %v", err)
				}
				text = ocr.Normalize(string(b))
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			if sample == "" {
				fmt.Fprintf(tw, "FIELD\tRULE\tNORMALIZER\tFUZZY\n")
			} else {
				fmt.Fprintf(tw, "FIELD\tRULE\tNORMALIZER\tFUZZY\tMATCH\n")
			}
			matched := 0
			for _, r := range rs.Rules {
				if sample == "" {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", r.Field, r.Name, r.Normalizer, r.Fuzzy)
					continue
				}
				match := "-"
				if v, ok := eng.MatchRule(r.Name, text); ok {
					match = v.Text
					matched++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.Field, r.Name, r.Normalizer, r.Fuzzy, match)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if sample != "" {
				fmt.Fprintf(a.stdout, "\n%d of %d rules matched %s\n", matched, len(rs.Rules), sample)
				return nil
			}
			fmt.Fprintf(a.stdout, "\n%s: %d rules, %d coverage, %d exclusion, %d chapter patterns\n",
				rs.Language, len(rs.Rules), len(rs.Coverage), len(rs.Exclusions), len(rs.Chapters))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&lang, "lang", "en", "built-in table: en or he (english, hebrew and iw also accepted)")
	f.StringVar(&file, "file", "", "validate and list a custom YAML rule table")
	f.StringVar(&sample, "sample", "", "text file to run every rule against")
	return cmd
}
