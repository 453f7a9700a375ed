package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		mimeType string
		today    string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract one policy document and print its record as JSON",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := parseToday(today)
			if err != nil {
				return err
			}
			p, err := a.processor(clock)
			if err != nil {
				return err
			}
			res, err := extractFile(cmd, p, args[0], mimeType)
			if err != nil {
				return err
			}
			if verbose {
				printDiagnostics(a, res)
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res.Record)
		},
	}
	f := cmd.Flags()
	f.StringVar(&mimeType, "mime", "", "MIME type; inferred from the extension when empty")
	f.StringVar(&today, "today", "", "reference date YYYY-MM-DD used for default policy dates")
	f.BoolVarP(&verbose, "verbose", "v", false, "print extraction diagnostics to stderr")
	return cmd
}

func newTextCmd(a *app) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "text FILE",
		Short: "Print the text acquired from a document and the method that produced it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.processor(nil)
			if err != nil {
				return err
			}
			res, err := extractFile(cmd, p, args[0], mimeType)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "method=%s pages=%d success=%t language=%s\n",
				res.Text.Method, res.Text.Pages, res.Text.Success, res.Language)
			fmt.Fprintln(a.stdout, res.Text.Text)
			if !res.Text.Success {
				return common.NewAppError(common.CodeUnreadableDocument, "no usable text in "+filepath.Base(args[0]), common.ErrUnreadableDocument)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type; inferred from the extension when empty")
	return cmd
}

func extractFile(cmd *cobra.Command, p *core.Processor, path, mimeType string) (core.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ExtractionResult{}, common.InvalidInput(fmt.Sprintf("file not found: %s", path))
		}
		return core.ExtractionResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Extract(cmd.Context(), data, filepath.Base(path), mimeType)
}

func parseToday(s string) (common.Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, usagef("--today must be YYYY-MM-DD, got %q", s)
	}
	return common.FixedClock(t), nil
}

func printDiagnostics(a *app, res core.ExtractionResult) {
	w := a.stderr
	fmt.Fprintf(w, "method:     %s\n", res.Text.Method)
	fmt.Fprintf(w, "language:   %s\n", res.Language)
	fmt.Fprintf(w, "variant:    %s\n", res.Variant)
	fmt.Fprintf(w, "duration:   %s\n", res.Duration.Round(time.Millisecond))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning:    %s\n", warn)
	}
	for _, name := range res.Fields.Names() {
		v := res.Fields[name]
		fuzzy := ""
		if v.Fuzzy {
			fuzzy = " (fuzzy)"
		}
		fmt.Fprintf(w, "field:      %-16s %-28s %s%s\n", name, v.Rule, v.Text, fuzzy)
	}
}
