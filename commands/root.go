package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-activity-timeline/internal/application/viewer"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

var (
	// Logging related
	debug bool

	// Record store
	storePath string

	// Display settings
	timezone   string
	timeFormat string

	// Refresh settings
	refreshRate   time.Duration
	uiRefreshRate float64

	rootCmd = &cobra.Command{
		Use:   "go-activity-timeline [flags]",
		Short: "Interactive activity timeline viewer",
		Long: `go-activity-timeline renders a zoomable, pannable timeline of captured
desktop activity in the terminal.

The viewer reads an activity archive (a local SQLite file or a record server
URL), lays out colored activity bars per application, and loads thumbnail
markers on demand as you navigate.

Examples:
  go-activity-timeline                                  # Open the default archive
  go-activity-timeline --store /path/to/activity.db     # Open a specific archive
  go-activity-timeline --store http://localhost:8520    # Connect to a record server
  go-activity-timeline --timezone UTC --debug           # UTC axis with debug logging`,
		RunE: runViewer,
	}
)

const (
	defaultLogFile   = "~/.go-activity-timeline/logs/app.log"
	defaultStorePath = "~/.go-activity-timeline/activity.db"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", defaultStorePath,
		"Activity archive path or record server URL")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "Local",
		"Timezone setting (e.g., Asia/Shanghai, UTC)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")

	rootCmd.Flags().StringVar(&timeFormat, "time-format", "24h",
		"Time format (12h, 24h)")
	rootCmd.Flags().DurationVar(&refreshRate, "refresh-rate", 5*time.Second,
		"Background data refresh interval")
	rootCmd.Flags().Float64Var(&uiRefreshRate, "ui-refresh", 10,
		"UI refresh rate in frames per second")
}

func runViewer(cmd *cobra.Command, args []string) error {
	initLogging()

	config := &viewer.ViewerConfig{
		StorePath:           resolveStorePath(storePath),
		Timezone:            timezone,
		TimeFormat:          timeFormat,
		DataRefreshInterval: refreshRate,
		UIRefreshRate:       uiRefreshRate,
	}

	orch, err := viewer.NewOrchestrator(config)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func initLogging() {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logFile := expandPath(defaultLogFile)
	ensureDir(filepath.Dir(logFile))
	util.InitLogger(logLevel, logFile, debug)
}

// resolveStorePath expands a local archive path; URLs pass through.
func resolveStorePath(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	expanded := expandPath(path)
	ensureDir(filepath.Dir(expanded))
	return expanded
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
