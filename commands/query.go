package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/data/store"
	"github.com/penwyp/go-activity-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

var (
	queryLast   time.Duration
	queryLimit  int
	queryOutput string

	queryCmd = &cobra.Command{
		Use:   "query [flags]",
		Short: "Dump timeline records for a time range",
		Long: `query prints the records in a recent time window without starting the
interactive viewer.

Examples:
  go-activity-timeline query                      # Last 2 hours as a table
  go-activity-timeline query --last 30m           # Last 30 minutes
  go-activity-timeline query --output json        # JSON for scripting
  go-activity-timeline query --limit 50           # At most 50 records`,
		RunE: runQuery,
	}
)

func init() {
	queryCmd.Flags().DurationVar(&queryLast, "last", 2*time.Hour,
		"Time window to look back")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0,
		"Limit result count (0 = unlimited)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "table",
		"Output format (table, json)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	initLogging()
	if err := util.InitializeTimeProvider(timezone); err != nil {
		return err
	}

	path := resolveStorePath(storePath)

	var st store.Store
	if isRemote(path) {
		st = store.NewHTTPStore(path)
	} else {
		sqliteStore, err := store.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		st = sqliteStore
	}
	defer st.Close()

	endMs := util.GetTimeProvider().NowMs()
	startMs := endMs - queryLast.Milliseconds()
	if startMs < 0 {
		startMs = 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := st.QueryTimeline(ctx, startMs, endMs)
	if err != nil {
		return fmt.Errorf("timeline query failed: %w", err)
	}
	if queryLimit > 0 && len(records) > queryLimit {
		records = records[:queryLimit]
	}

	return formatRecords(records)
}

func formatRecords(records []model.EventRecord) error {
	switch queryOutput {
	case "json":
		return formatter.NewJSONFormatter().Format(records)
	case "table":
		return formatter.NewTableFormatter().Format(records)
	default:
		return fmt.Errorf("unknown output format: %s", queryOutput)
	}
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
