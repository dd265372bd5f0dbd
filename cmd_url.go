package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"realestate-ingest/scraper/isc"
)

func (a *app) urlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "url <search-id>",
		Short: "Print the provider URL a search crawls, without fetching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchID, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			filter, err := store.GetSearchFilter(cmd.Context(), searchID)
			if err != nil {
				return fmt.Errorf("load filter of search %s: %w", searchID, err)
			}
			fmt.Fprintln(a.out, isc.BuildSearchURL(a.cfg.ProviderBaseURL, filter))
			return nil
		},
	}
}
