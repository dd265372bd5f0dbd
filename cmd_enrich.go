package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"realestate-ingest/services"
	"realestate-ingest/utils"
)

func (a *app) enrichCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill agency and listing details from the provider's detail pages",
	}
	cmd.PersistentFlags().IntVar(&limit, "limit", 100, "maximum records to visit (0 = no limit)")

	run := func(pass func(*services.Enricher, context.Context, int) (services.EnrichResult, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openStore(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			enricher := services.NewEnricher(store, a.fetcher(), utils.NewThrottle(a.cfg.PageDelay), a.logger)
			res, err := pass(enricher, ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "visited %d, updated %d, failed %d\n", res.Visited, res.Updated, res.Failed)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "agencies",
			Short: "Fetch CRECI and phone numbers for agencies that lack them",
			Args:  cobra.NoArgs,
			RunE:  run((*services.Enricher).EnrichAgencies),
		},
		&cobra.Command{
			Use:   "listings",
			Short: "Fetch images and condominium fee for listings that lack them",
			Args:  cobra.NoArgs,
			RunE:  run((*services.Enricher).EnrichListings),
		},
	)
	return cmd
}
