package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

func newItemsCmd(c *cli) *cobra.Command {
	var params ports.ListParams
	var lowStock int

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List inventory items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("low-stock") {
				params.LowStock = &lowStock
			}
			items := []domain.Item{}
			for params.Page = 1; ; params.Page++ {
				result, err := c.app.Inventory.List(cmd.Context(), params)
				if err != nil {
					return err
				}
				items = append(items, result.Items...)
				if params.Page >= result.TotalPages {
					break
				}
			}

			suppliers := c.app.Engine.Suppliers()
			return c.emit(cmd.OutOrStdout(), items, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tSKU\tQTY\tPRICE\tCATEGORIES\tSUPPLIER")
				for _, item := range items {
					supplier := ""
					if item.SupplierID != "" {
						s, _ := suppliers.Resolve(item.SupplierID)
						supplier = s.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
						item.ID, item.Name, item.SKU, item.Quantity, item.SalePrice.StringFixed(2),
						strings.Join(item.Categories, ", "), supplier)
				}
			})
		},
	}
	cmd.Flags().StringVar(&params.Search, "search", "", "match name, SKU or notes")
	cmd.Flags().StringVar(&params.Category, "category", "", "only items in this category")
	cmd.Flags().StringVar(&params.SupplierID, "supplier", "", "only items from this supplier id")
	cmd.Flags().IntVar(&lowStock, "low-stock", 0, "only items with at most this quantity")
	cmd.Flags().StringVar(&params.SortBy, "sort", "name", "sort field")

	cmd.AddCommand(newItemsAddCmd(c), newItemsAdjustCmd(c))
	return cmd
}

func newItemsAddCmd(c *cli) *cobra.Command {
	var (
		item        domain.Item
		price, cost string
		categories  []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an inventory item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if item.SalePrice, err = parsePrice("price", price); err != nil {
				return err
			}
			if item.PurchasePrice, err = parsePrice("cost", cost); err != nil {
				return err
			}
			item.Categories = categories

			created, err := c.app.Inventory.CreateItem(cmd.Context(), item)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), created, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Added %s\t%s\n", created.ID, created.Name)
			})
		},
	}
	cmd.Flags().StringVar(&item.Name, "name", "", "item name")
	cmd.Flags().StringVar(&item.SKU, "sku", "", "stock keeping unit")
	cmd.Flags().IntVar(&item.Quantity, "qty", 0, "quantity on hand")
	cmd.Flags().StringVar(&price, "price", "0", "sale price")
	cmd.Flags().StringVar(&cost, "cost", "0", "purchase price")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "category; repeat or comma-separate")
	cmd.Flags().StringVar(&item.SupplierID, "supplier", "", "supplier id")
	cmd.Flags().StringVar(&item.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newItemsAdjustCmd(c *cli) *cobra.Command {
	var (
		delta  int
		reason string
	)

	cmd := &cobra.Command{
		Use:     "adjust <item-id> --by <delta>",
		Short:   "Change the quantity on hand",
		Example: "  stockctl items adjust 3f2a --by=-1 --reason damaged",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delta == 0 {
				return domain.NewValidationError("by", "must not be zero")
			}
			item, err := c.app.Inventory.AdjustQuantity(cmd.Context(), args[0], delta, reason)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), item, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s\t%s\t%d on hand\n", item.ID, item.Name, item.Quantity)
			})
		},
	}
	cmd.Flags().IntVar(&delta, "by", 0, "quantity change; negative removes stock")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func parsePrice(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, "must be a number")
	}
	return d, nil
}
