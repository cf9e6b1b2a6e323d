package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/boq-ai/internal/boq/dispatcher"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/boq/history"
	"github.com/cuongbtq/boq-ai/internal/boq/orchestrator"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

type pricingFlags struct {
	prices  string
	vendors []string
	export  bool
}

func (f *pricingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.prices, "prices", "", "YAML file mapping line index to unit price")
	cmd.Flags().StringArrayVar(&f.vendors, "vendor", nil, "Pick a vendor offer for a line, as index=vendor (repeatable)")
	cmd.Flags().BoolVar(&f.export, "export", false, "Save the priced BoQ as a spreadsheet")
}

func newSubmitCmd(a *app) *cobra.Command {
	var flags pricingFlags

	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Upload drawings, wait for every job and print the priced BoQ",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.submit(ctx, args, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) submit(ctx context.Context, paths []string, flags pricingFlags) error {
	log := a.logger.Logger

	files := make([]dispatcher.File, 0, len(paths))
	for _, p := range paths {
		if err := dispatcher.ValidateFileName(filepath.Base(p), a.cfg.Client.AcceptedExtensions); err != nil {
			return err
		}
		f, err := dispatcher.FromPath(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	input, err := loadPriceInput(flags.prices, flags.vendors)
	if err != nil {
		return err
	}
	catalog, err := a.loadCatalog(ctx)
	if err != nil {
		return err
	}

	var journal *history.Journal
	if path := a.cfg.Client.HistoryPath; path != "" {
		if journal, err = history.Open(path, log); err != nil {
			return err
		}
		defer journal.Close()
	}

	orch := orchestrator.New(&orchestrator.Config{
		Logger:        log,
		Uploader:      a.api,
		Source:        a.api,
		Standard:      a.cfg.Client.Standard,
		PollInterval:  a.cfg.Client.PollInterval,
		MaxPollErrors: a.cfg.Client.MaxPollErrors,
		JobTimeout:    a.cfg.Client.JobTimeout,
	})
	defer orch.Close()

	if journal != nil {
		orch.Registry().Observe(journal)
	}
	orch.Registry().Observe(registry.ObserverFunc(func(prev, next domain.Job) {
		if prev.Status != next.Status {
			log.Info("Job status changed",
				slog.String("file_name", next.FileName),
				slog.String("server_id", next.ServerID),
				slog.String("status", next.Status.Info().Label),
			)
		}
	}))

	// Upload failures are already recorded as failed jobs; keep waiting on the rest.
	if _, err := orch.SubmitAll(ctx, files); err != nil {
		log.Warn("Some uploads failed", slog.String("error", err.Error()))
	}

	if err := orch.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for jobs: %w", err)
	}

	var errs []error
	for _, job := range orch.Jobs() {
		if job.Status != domain.StatusFinished {
			errs = append(errs, fmt.Errorf("%s (key %s): %s", job.FileName, job.ClientKey, failureText(job)))
			continue
		}
		title := fmt.Sprintf("%s (job %s, key %s)", job.FileName, job.ServerID, job.ClientKey)
		if err := a.priceResult(ctx, title, job.Result, catalog, input, flags.export); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.FileName, err))
		}
	}
	return errors.Join(errs...)
}

func failureText(job domain.Job) string {
	if job.Error != "" {
		return job.Error
	}
	return "processing failed"
}
