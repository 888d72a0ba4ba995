package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/chatsync/internal/store"
)

func snapshotCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print entity counts from the cache snapshot",
		Long: `Read the cache snapshot written by "chatsync run" and print how many
entities of each kind it holds.

Examples:
  # Inspect the configured snapshot
  chatsync snapshot

  # Inspect a specific file
  chatsync snapshot --path /tmp/cache.json.zst`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = cfg.Cache.SnapshotPath
			}

			state, err := store.LoadSnapshot(path)
			if err != nil {
				return err
			}

			out := struct {
				Path       string                `json:"path"`
				Counts     store.Counts          `json:"counts"`
				Connection store.ConnectionState `json:"connection"`
			}{
				Path:       path,
				Counts:     state.Counts(),
				Connection: state.Connection,
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("writing counts: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "snapshot file (default: cache.snapshot_path)")

	return cmd
}
