package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/service/reccache"
	"github.com/vladislavdragonenkov/storefront/internal/service/shuffle"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/mock"
)

type fingerprintOutput struct {
	Fingerprint string   `json:"fingerprint"`
	IDs         []string `json:"ids"`
}

func newFingerprintCmd() *cobra.Command {
	var product bool
	cmd := &cobra.Command{
		Use:   "fingerprint [id...]",
		Short: "Print the cache key for a cart (or product with --product)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				ids = append(ids, strings.Split(arg, ",")...)
			}
			namespace := reccache.NamespaceCart
			if product {
				namespace = reccache.NamespaceProduct
			}
			return writeJSON(cmd.OutOrStdout(), fingerprintOutput{
				Fingerprint: reccache.Fingerprint(namespace, ids),
				IDs:         reccache.NormalizeIDs(ids),
			})
		},
	}
	cmd.Flags().BoolVar(&product, "product", false, "Use the product recommendations namespace")
	return cmd
}

type seedOutput struct {
	Material string   `json:"material"`
	Seed     uint32   `json:"seed"`
	Order    []string `json:"order"`
}

func newSeedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "seed [material]",
		Short: "Show the deterministic seed and demo catalog order for a visitor key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			material := args[0]
			permuted := shuffle.Permute(mock.DemoCatalog(), material)
			if limit > 0 && limit < len(permuted) {
				permuted = permuted[:limit]
			}
			order := make([]string, 0, len(permuted))
			for _, p := range permuted {
				order = append(order, p.ExternalID)
			}
			return writeJSON(cmd.OutOrStdout(), seedOutput{
				Material: material,
				Seed:     shuffle.Seed(material),
				Order:    order,
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Truncate the order to N items (0 = all)")
	return cmd
}
