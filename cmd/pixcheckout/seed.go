package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/usecase"
)

func newSeedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a sample product with a plan and an order bump",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := flags.loadWithLogger()
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			catalog := usecase.NewCatalogUseCase(st.catalog)
			existing, err := catalog.ListProducts(ctx)
			if err != nil {
				return fmt.Errorf("list products: %w", err)
			}
			if len(existing) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d products already present. No changes.\n", len(existing))
				for _, p := range existing {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", p.Name, p.ID)
				}
				return nil
			}

			product, err := catalog.SaveProduct(ctx, &model.Product{
				Name:        "Curso de Fotografia",
				Description: "Do básico ao avançado, com aulas gravadas.",
				Active:      true,
				Deliverables: []model.Deliverable{
					{Name: "Área de membros", Kind: model.DeliverableAccess, URL: "https://membros.example.com/fotografia"},
				},
			})
			if err != nil {
				return fmt.Errorf("seed product: %w", err)
			}
			plan, err := catalog.SavePlan(ctx, &model.Plan{ProductID: product.ID, Name: "Acesso vitalício", Price: 9700, Active: true})
			if err != nil {
				return fmt.Errorf("seed plan: %w", err)
			}
			bump, err := catalog.SaveOrderBump(ctx, &model.OrderBump{
				ProductID: product.ID, Title: "Pack de presets", Price: 1990, Active: true,
				Deliverables: []model.Deliverable{
					{Name: "Presets Lightroom", Kind: model.DeliverableDownload, URL: "https://cdn.example.com/presets.zip"},
				},
			})
			if err != nil {
				return fmt.Errorf("seed order bump: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded product %s\n  plan  %s  %s\n  bump  %s  %s\n",
				product.ID, plan.ID, usecase.FormatBRL(plan.Price), bump.ID, usecase.FormatBRL(bump.Price))
			return nil
		},
	}
}
