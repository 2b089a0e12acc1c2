package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hopper/internal/catalog"
	"hopper/internal/config"
	"hopper/internal/ipc"
	"hopper/internal/logging"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the persistent outcome catalog",
	}

	var limit int
	var jsonOut bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recently processed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := catalogList(cmd.Context(), ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			printCatalog(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records")
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "Output records as JSON")
	catalogCmd.AddCommand(listCmd)
	return catalogCmd
}

// catalogList asks the daemon, or reads the database directly when no
// daemon is listening.
func catalogList(ctx context.Context, cc *commandContext, limit int) (*ipc.CatalogListResponse, error) {
	client, dialErr := cc.dialClient()
	if dialErr == nil {
		defer client.Close()
		return client.CatalogList(limit)
	}

	cfg := cc.configValue()
	if !cfg.Catalog.Enabled {
		return nil, errors.New("catalog disabled in configuration")
	}
	if _, err := os.Stat(cfg.CatalogPath()); err != nil {
		return nil, fmt.Errorf("catalog not found at %s: %w", cfg.CatalogPath(), err)
	}
	return readCatalog(ctx, cfg, limit)
}

func readCatalog(ctx context.Context, cfg *config.Config, limit int) (*ipc.CatalogListResponse, error) {
	store, err := catalog.Open(cfg.CatalogPath(), logging.NewNop())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	records, err := store.Recent(queryCtx, limit)
	if err != nil {
		return nil, err
	}
	totals, err := store.Stats(queryCtx)
	if err != nil {
		return nil, err
	}

	resp := &ipc.CatalogListResponse{
		Records: make([]ipc.CatalogRecord, 0, len(records)),
		Totals:  make(map[string]int, len(totals)),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, ipc.CatalogRecord{
			ID:          rec.ID,
			BatchID:     rec.BatchID,
			File:        rec.File,
			Outcome:     rec.Outcome.String(),
			Reason:      rec.Reason,
			Checksum:    rec.Checksum,
			Size:        rec.Size,
			ProcessedAt: rec.ProcessedAt,
		})
	}
	for outcome, count := range totals {
		resp.Totals[outcome.String()] = count
	}
	return resp, nil
}

func printCatalog(out io.Writer, resp *ipc.CatalogListResponse) {
	if len(resp.Records) == 0 {
		fmt.Fprintln(out, "Catalog is empty")
		return
	}
	rows := make([][]string, 0, len(resp.Records))
	for _, rec := range resp.Records {
		detail := rec.Reason
		if detail == "" && len(rec.Checksum) >= 12 {
			detail = "sha256 " + rec.Checksum[:12]
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.File,
			rec.Outcome,
			humanize.IBytes(uint64(max(rec.Size, 0))),
			humanize.Time(rec.ProcessedAt),
			detail,
		})
	}
	fmt.Fprint(out, renderTable([]string{"ID", "File", "Outcome", "Size", "Processed", "Detail"}, rows, 0, 3))

	outcomes := make([]string, 0, len(resp.Totals))
	for outcome := range resp.Totals {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(out, "%s: %s total\n", outcome, humanize.Comma(int64(resp.Totals[outcome])))
	}
}
