package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	agentapi "github.com/iudanet/flocksync/internal/agent/api"
	"github.com/iudanet/flocksync/internal/agent/state"
	"github.com/iudanet/flocksync/internal/aol"
	"github.com/iudanet/flocksync/internal/models"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the records currently asserted in the coordination log",
	Long: `Fetch the coordination service's fact log and print the records it
currently asserts, grouped by type. The agent keeps a local mirror of
the log and fetches only the entries after its cached head, refetching
from scratch when the service no longer recognizes that head.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, cfg, err := newAPIClient(configFile)
		if err != nil {
			return err
		}

		store, err := state.New(ctx, cfg.GetString(cfgKeyStateDB))
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()

		mirrorPath := filepath.Join(cfg.GetString(cfgKeyDataDir), "catalog.aol")
		if err := os.MkdirAll(cfg.GetString(cfgKeyDataDir), 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		local, err := aol.Load(mirrorPath)
		if err != nil {
			return err
		}

		cursor, err := store.LogHead(ctx)
		if err != nil {
			return err
		}
		if cursor != aol.TipHash(local) {
			// The mirror file is the source of truth; the cached head
			// only survives a crash between persist and save.
			cursor = aol.TipHash(local)
		}

		suffix, err := client.GetLog(ctx, cursor)
		merged := local
		switch {
		case err == nil:
			merged = append(merged, suffix...)
		case errors.Is(err, agentapi.ErrHeadNotFound):
			full, err := client.GetLog(ctx, "")
			if err != nil {
				return err
			}
			if err := os.Remove(mirrorPath); err != nil {
				return fmt.Errorf("failed to reset log mirror: %w", err)
			}
			merged = full
			suffix = full
		default:
			return err
		}

		if idx := aol.Verify(merged); idx != -1 {
			return fmt.Errorf("log hash chain broken at entry %d", idx)
		}
		if err := aol.Persist(merged, mirrorPath); err != nil {
			return err
		}
		if err := store.SaveLogHead(ctx, aol.TipHash(merged)); err != nil {
			return err
		}

		stdio.Printf("%d entries (%d new), tip %s\n",
			len(merged), len(suffix), aol.TipHash(merged))

		records := aol.Decode(merged, models.Constructors())
		tags := make([]string, 0, len(records))
		for tag := range records {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			stdio.Printf("\n%s (%d)\n", tag, len(records[tag]))
			for _, rec := range records[tag] {
				stdio.Printf("  %s\n", rec.RecordID())
				for _, field := range rec.Fields() {
					if field.Name == "id" || field.Name == "password" {
						continue
					}
					stdio.Printf("    %-16s %s\n", field.Name, field.Value)
				}
			}
		}
		return nil
	},
}
