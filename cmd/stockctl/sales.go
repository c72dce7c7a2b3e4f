package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

func newSellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <item-id> <quantity>",
		Short: "Record a sale and take it out of stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return domain.NewValidationError("quantity", "must be a whole number")
			}
			sale, err := c.app.Sales.RecordSale(cmd.Context(), ports.SaleRequest{ItemID: args[0], Quantity: qty})
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), sale, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Sold %d x %s\ttotal %s\t(%s at %s)\n",
					sale.Quantity, sale.ItemName, sale.Total.StringFixed(2),
					sale.TotalConverted.StringFixed(2), sale.ExchangeRate.String())
			})
		},
	}
}

func newAuditCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.app.Audit.ListEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "TIME\tACTION\tTARGET\tUSER")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.TargetName, e.User)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of most recent entries; 0 for all")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Audit.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Audit log cleared")
			return nil
		},
	})
	return cmd
}
