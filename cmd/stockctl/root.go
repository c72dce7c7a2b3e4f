package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ammerola/stockbook/internal/app"
)

// skipLoad marks commands that load collections themselves.
const skipLoad = "skip-load"

type cli struct {
	open       func(ctx context.Context, opts app.Options) (*app.App, error)
	app        *app.App
	jsonOutput bool
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Operate the stockbook collections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, skip := cmd.Annotations[skipLoad]
			a, err := c.open(cmd.Context(), app.Options{SkipLoad: skip})
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newLoadCmd(c),
		newItemsCmd(c),
		newSellCmd(c),
		newArchiveCmd(c),
		newSweepCmd(c),
		newBackupCmd(c),
		newRestoreCmd(c),
		newAuditCmd(c),
	)
	return root
}

// emit prints v as JSON when --json is set and calls table otherwise.
func (c *cli) emit(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if c.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
