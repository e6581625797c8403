package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/James-Hooson/Bonsai-Biz/internal/catalog"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
)

func productsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and seed the catalog",
	}
	cmd.AddCommand(productsSeedCmd(opts), productsListCmd(opts))
	return cmd
}

func productsSeedCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Upsert products from a YAML catalog file",
		Example: `  bonsaictl products seed catalog.yaml
  bonsaictl products seed catalog.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := catalog.LoadSeed(f)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d products parsed, nothing written\n", len(items))
				return nil
			}
			return opts.withStore(cmd.Context(), func(s *store.Postgres) error {
				res, err := catalog.Seed(cmd.Context(), s, items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d\n", res.Created, res.Updated)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate the file without writing")
	return cmd
}

func productsListCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(s *store.Postgres) error {
				return listProducts(cmd.Context(), cmd.OutOrStdout(), s, category)
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only show this main category")
	return cmd
}

func listProducts(ctx context.Context, out io.Writer, products store.ProductStore, category string) error {
	list, err := catalog.NewService(products).List(ctx, category)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tIN STOCK")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.InStock)
	}
	return tw.Flush()
}
