package viewer

import (
	"fmt"
	"strings"
	"time"
)

// ViewerConfig contains configuration for the interactive timeline viewer.
type ViewerConfig struct {
	// Record store: a local SQLite archive path or an http(s) base URL.
	StorePath string

	// Display settings
	Timezone   string
	TimeFormat string

	// Refresh settings
	DataRefreshInterval time.Duration
	UIRefreshRate       float64 // frames per second

	// FollowInterval is how often follow-now advances the viewport.
	FollowInterval time.Duration
}

// Validate checks the configuration and fills defaults.
func (c *ViewerConfig) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("record store path is required")
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.TimeFormat == "" {
		c.TimeFormat = "24h"
	}
	if c.DataRefreshInterval == 0 {
		c.DataRefreshInterval = 5 * time.Second
	}
	if c.UIRefreshRate == 0 {
		c.UIRefreshRate = 10
	}
	if c.FollowInterval == 0 {
		c.FollowInterval = 250 * time.Millisecond
	}
	return nil
}

// IsRemoteStore reports whether StorePath names an HTTP record server
// instead of a local archive file.
func (c *ViewerConfig) IsRemoteStore() bool {
	return strings.HasPrefix(c.StorePath, "http://") || strings.HasPrefix(c.StorePath, "https://")
}
