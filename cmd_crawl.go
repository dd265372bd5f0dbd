package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"realestate-ingest/scraper/isc"
	"realestate-ingest/services"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

func (a *app) crawlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <search-id>",
		Short: "Crawl the provider once for a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchID, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.crawl(ctx, searchID)
		},
	}
}

func (a *app) crawl(ctx context.Context, searchID uuid.UUID) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	metrics := utils.NewMetrics()
	if a.cfg.MetricsAddr != "" {
		metrics.Serve(ctx, a.cfg.MetricsAddr, a.logger)
	}

	opts := services.OrchestratorOptions{BaseURL: a.cfg.ProviderBaseURL, Metrics: metrics}
	if a.cfg.CSVOutputPath != "" {
		w, err := storage.NewCSVWriter(a.cfg.CSVOutputPath)
		if err != nil {
			return err
		}
		defer w.Close()
		opts.RawWriter = w
		a.logger.Info("[main] Raw listings will be appended to %s", a.cfg.CSVOutputPath)
	}

	session := isc.NewSession(a.fetcher(), utils.NewThrottle(a.cfg.PageDelay), a.logger)
	orchestrator := services.NewOrchestrator(store, session, a.logger, opts)

	report, err := orchestrator.Run(ctx, searchID)
	if report != nil {
		orchestrator.Reports().Print(a.out, report)
	}
	return err
}

func (a *app) fetcher() *isc.CollyFetcher {
	return isc.NewCollyFetcher(isc.FetcherOptions{Timeout: a.cfg.RequestTimeout})
}

func parseSearchID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid search id %q: %w", raw, err)
	}
	return id, nil
}
