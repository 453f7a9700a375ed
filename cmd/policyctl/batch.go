package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/export"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
	"github.com/joseph-ayodele/policy-extractor/internal/services/importer"
)

// store bundles what the persisting commands share.
type store struct {
	db       *repository.DB
	policies repository.PolicyRepository
	jobs     repository.ExtractJobRepository
}

func (a *app) openRepositories(ctx context.Context) (*store, error) {
	db, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	clock := common.SystemClock{}
	return &store{
		db:       db,
		policies: repository.NewPolicyRepository(db, clock, a.logger),
		jobs:     repository.NewExtractJobRepository(db, clock, a.logger),
	}, nil
}

func (a *app) importer(st *store, workers int) (*importer.Service, error) {
	p, err := a.processor(nil)
	if err != nil {
		return nil, err
	}
	loader := ingest.NewFSLoader(int64(a.cfg.Pipeline.MaxDocumentBytes), a.logger)
	return importer.NewService(loader, p, st.policies, st.jobs, a.logger,
		importer.WithWorkers(workers),
		importer.WithRateLimit(a.cfg.Batch.RatePerSecond),
	), nil
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		workers       int
		xlsxPath      string
		includeHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Import every supported document under a directory",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				workers = a.cfg.Batch.Workers
			}
			ctx := cmd.Context()
			st, err := a.openRepositories(ctx)
			if err != nil {
				return err
			}
			defer st.db.Close()

			svc, err := a.importer(st, workers)
			if err != nil {
				return err
			}
			results, stats, err := svc.ImportDirectory(ctx, args[0], !includeHidden)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != "" {
					fmt.Fprintf(a.stderr, "failed  %s: %s\n", r.Path, r.Err)
				}
			}
			fmt.Fprintf(a.stdout,
				"scanned=%d matched=%d succeeded=%d created=%d updated=%d unreadable=%d failed=%d\n",
				stats.Scanned, stats.Matched, stats.Succeeded, stats.Created, stats.Updated, stats.Unreadable, stats.Failed)

			if xlsxPath != "" {
				if err := writeWorkbook(ctx, a, st.policies, repository.PolicyFilter{}, xlsxPath); err != nil {
					return err
				}
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Matched)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&workers, "workers", "w", 0, "concurrent extractions (default from config)")
	f.StringVar(&xlsxPath, "xlsx", "", "also write all stored policies to this XLSX file")
	f.BoolVar(&includeHidden, "include-hidden", false, "include dot files and dot directories")
	return cmd
}

func writeWorkbook(ctx context.Context, a *app, policies repository.PolicyRepository, filter repository.PolicyFilter, path string) error {
	data, err := export.NewService(policies, a.logger).ExportPoliciesXLSX(ctx, filter)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	a.logger.Info("wrote workbook", "path", path, "bytes", len(data))
	return nil
}
