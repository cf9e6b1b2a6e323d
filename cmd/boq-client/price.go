package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/export"
	"github.com/cuongbtq/boq-ai/internal/pricing"
)

func newPriceCmd(a *app) *cobra.Command {
	var flags pricingFlags

	cmd := &cobra.Command{
		Use:   "price JOB_ID",
		Short: "Price the result of a job that already finished on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.price(cmd.Context(), args[0], flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) price(ctx context.Context, jobID string, flags pricingFlags) error {
	report, err := a.api.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if report.Status != domain.StatusFinished {
		return fmt.Errorf("job %s is %s, not finished", jobID, report.Status.Info().Label)
	}

	input, err := loadPriceInput(flags.prices, flags.vendors)
	if err != nil {
		return err
	}
	catalog, err := a.loadCatalog(ctx)
	if err != nil {
		return err
	}
	return a.priceResult(ctx, "job "+jobID, report.Result, catalog, input, flags.export)
}

func (a *app) loadCatalog(ctx context.Context) (*pricing.Catalog, error) {
	catalog, err := pricing.LoadCatalog(ctx, a.cfg.Client.Catalog, nil)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Vendor catalog loaded",
		slog.String("source", a.cfg.Client.Catalog),
		slog.Int("materials", len(catalog.Materials)),
	)
	return catalog, nil
}

// priceResult merges one result with the user's prices, prints it and
// optionally exports it
func (a *app) priceResult(ctx context.Context, title string, result *domain.Result, catalog *pricing.Catalog, input priceInput, exportIt bool) error {
	sel, err := input.selectionsFor(len(result.Items), func(i int) []pricing.VendorOffer {
		return catalog.Offers(result.Items[i].Description)
	})
	if err != nil {
		return err
	}

	breakdown := pricing.Merge(result.Items, catalog, sel)
	if err := renderBreakdown(a.out, title, breakdown); err != nil {
		return err
	}
	if !exportIt {
		return nil
	}

	requester := export.NewRequester(a.api, export.DirSaver{Dir: a.cfg.Client.ExportDir}, a.logger.Logger)
	path, err := requester.Export(ctx, breakdown.Items)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(a.out, "Saved %s\n", path)
	return nil
}
