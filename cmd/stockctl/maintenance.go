package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

func newLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "load [collection...]",
		Short:       "Load collections and show where each came from",
		Annotations: map[string]string{skipLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]domain.CollectionName, len(args))
			for i, arg := range args {
				names[i] = domain.CollectionName(arg)
			}
			results, err := c.app.Engine.Load(cmd.Context(), names...)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), results, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "COLLECTION\tSOURCE\tVERSION\tMIGRATED")
				for _, res := range results {
					version := string(res.Version)
					if res.Version == ports.NoVersion {
						version = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", res.Collection, res.Source, version, res.Migrated)
				}
			})
		},
	}
}

func newArchiveCmd(c *cli) *cobra.Command {
	var (
		before string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move old sales into an archive document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = c.app.Config.Business.ArchiveRetentionDays
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			if before != "" {
				t, err := time.Parse(time.DateOnly, before)
				if err != nil {
					return domain.NewValidationError("before", "must be a date like 2006-01-02")
				}
				cutoff = t
			}

			result, err := c.app.Maintenance.Archive(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
				if result.Archived == 0 {
					fmt.Fprintf(tw, "No sales before %s\n", result.Cutoff.Format(time.DateOnly))
					return
				}
				fmt.Fprintf(tw, "Archived %d sales\tto %s\n", result.Archived, result.Path)
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "archive sales before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 0, "archive sales older than this many days")
	return cmd
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete images no item references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Maintenance.SweepImages(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Scanned %d\tdeleted %d\tfailed %d\n", result.Scanned, len(result.Deleted), len(result.Failed))
				for _, p := range result.Deleted {
					fmt.Fprintf(tw, "  deleted\t%s\n", p)
				}
				for _, msg := range result.Failed {
					fmt.Fprintf(tw, "  failed\t%s\n", msg)
				}
			})
		},
	}
}

func newBackupCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export every collection as one JSON bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := c.app.Maintenance.Backup(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create backup file: %w", err)
				}
				defer f.Close()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(bundle); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newRestoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file|->",
		Short: "Replace every collection with a backup bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open backup: %w", err)
				}
				defer f.Close()
				r = f
			}

			var bundle ports.Bundle
			if err := json.NewDecoder(r).Decode(&bundle); err != nil {
				return fmt.Errorf("%w: backup: %v", ports.ErrCorrupt, err)
			}
			if err := c.app.Maintenance.Restore(cmd.Context(), &bundle); err != nil {
				return err
			}

			statuses := c.app.Engine.Status()
			return c.emit(cmd.OutOrStdout(), statuses, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "COLLECTION\tPHASE\tVERSION")
				for _, s := range statuses {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Collection, s.Phase, s.Version)
				}
			})
		},
	}
}
