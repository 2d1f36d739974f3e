package main

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/httpclient"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/mock"
)

type catalogFlags struct {
	catalogURL string
	category   string
	visitor    string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.catalogURL, "catalog-url", "", "Catalog Service base URL (default: upstream config, demo catalog in mock mode)")
	cmd.Flags().StringVar(&f.category, "category", "", "Exact category filter")
	cmd.Flags().StringVar(&f.visitor, "visitor", "", "Visitor key that seeds the shuffle (empty: catalog order)")
}

func (f *catalogFlags) viewOptions() catalog.ViewOptions {
	return catalog.ViewOptions{
		Category:   strings.TrimSpace(f.category),
		VisitorKey: domain.VisitorKey(strings.TrimSpace(f.visitor)),
	}
}

// catalogService собирает витрину над реальным Catalog Service или демо-каталогом.
func (f *catalogFlags) catalogService(opts *rootOptions) (*catalog.Service, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := log.WithField("component", "storefrontctl")
	var source domain.CatalogService
	switch {
	case f.catalogURL != "":
		upstream := cfg.Upstream.Catalog
		upstream.BaseURL = f.catalogURL
		source, err = httpclient.NewCatalogClient(upstream, httpclient.WithLogger(logger))
	case cfg.Upstream.Mode == app.UpstreamModeHTTP:
		source, err = httpclient.NewCatalogClient(cfg.Upstream.Catalog, httpclient.WithLogger(logger))
	default:
		source = mock.NewCatalogService(mock.DemoCatalog())
	}
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}

	return catalog.NewService(source, catalog.NewGrouper(cfg.Catalog), catalog.WithLogger(logger)), nil
}

func newViewCmd(opts *rootOptions) *cobra.Command {
	flags := &catalogFlags{}
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the grouped storefront view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := flags.catalogService(opts)
			if err != nil {
				return err
			}
			view, err := svc.View(cmd.Context(), flags.viewOptions())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	flags := &catalogFlags{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a catalog search (exact match first, fuzzy fallback)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.catalogService(opts)
			if err != nil {
				return err
			}
			view, err := svc.Search(cmd.Context(), args[0], flags.viewOptions())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
	flags.register(cmd)
	return cmd
}
