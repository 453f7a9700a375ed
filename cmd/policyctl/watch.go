package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/async"
	coreasync "github.com/joseph-ayodele/policy-extractor/internal/core/async"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
	"github.com/joseph-ayodele/policy-extractor/internal/services/importer"
)

func newWatchCmd(a *app) *cobra.Command {
	var noInitialScan bool
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Import documents as they appear under one or more directories",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openRepositories(ctx)
			if err != nil {
				return err
			}
			defer st.db.Close()

			svc, err := a.importer(st, a.cfg.Batch.Workers)
			if err != nil {
				return err
			}

			var outMu sync.Mutex
			q := coreasync.NewProcessorQueue(svc, a.logger,
				coreasync.WithWorkers(a.cfg.Batch.Workers),
				coreasync.WithQueueSize(a.cfg.Batch.QueueSize),
				coreasync.WithProcessTimeout(a.cfg.Batch.ProcessTimeout),
				coreasync.WithResultFunc(func(job async.Job, res importer.Result, err error) {
					outMu.Lock()
					defer outMu.Unlock()
					printResult(a, job, res, err)
				}),
			)

			paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: a.cfg.Watch.InitialScan && !noInitialScan,
				Debounce:    a.cfg.Watch.Debounce,
				Logger:      a.logger,
			})
			if err != nil {
				q.Shutdown(ctx)
				return err
			}
			a.logger.Info("watching", "roots", args, "workers", a.cfg.Batch.Workers)

			for paths != nil || errs != nil {
				select {
				case p, ok := <-paths:
					if !ok {
						paths = nil
						continue
					}
					job := async.Job{Path: p, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
					if err := q.Enqueue(ctx, job); err != nil {
						a.logger.Warn("dropped file", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Error("watch error", "error", err)
				}
			}

			// ctx is done; let in-flight imports finish within a grace period.
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Batch.ProcessTimeout)
			defer cancel()
			q.Shutdown(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noInitialScan, "no-initial-scan", false, "skip files that already exist at startup")
	return cmd
}

func printResult(a *app, job async.Job, res importer.Result, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(a.stdout, "FAILED      %s: %v\n", job.Path, err)
	case res.Unreadable:
		fmt.Fprintf(a.stdout, "UNREADABLE  %s id=%s\n", job.Path, res.DocumentID)
	default:
		review := ""
		if res.NeedsReview {
			review = " needs-review"
		}
		fmt.Fprintf(a.stdout, "OK          %s id=%s confidence=%.2f%s\n", job.Path, res.DocumentID, res.Confidence, review)
	}
}
