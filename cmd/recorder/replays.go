package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/pucks-replay/internal/archive"
)

func replaysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replays",
		Short: "Inspect the local replay archive",
	}
	cmd.AddCommand(replaysListCmd(a), replaysShowCmd(a))
	return cmd
}

func (a *app) openArchive() (*archive.Store, error) {
	compression, err := archive.ParseCompression(a.cfg.Archive.Compression)
	if err != nil {
		return nil, err
	}
	return archive.Open(a.cfg.Archive.Path, compression, a.logger.Named("archive"))
}

func replaysListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived replays, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSAMPLES\tSTORED\tCOMPRESSION")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ID,
					time.UnixMilli(s.StartedAt).UTC().Format(time.RFC3339),
					(time.Duration(s.DurationMs) * time.Millisecond).Round(time.Second),
					s.Samples,
					s.StoredSize,
					s.Compression,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum replays to list (0 for all)")

	return cmd
}

func replaysShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print an archived replay as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}
}
