// Package store defines the record-store contract the timeline consumes,
// with sqlite-backed and HTTP-backed implementations.
package store

import (
	"context"
	"errors"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// ErrNotFound is the terminal answer for a thumbnail that genuinely does
// not exist. Callers must not retry it.
var ErrNotFound = errors.New("thumbnail not found")

// Store is the external record-store contract: a time-range query over
// event records and a per-key thumbnail fetch.
type Store interface {
	QueryTimeline(ctx context.Context, startMs, endMs int64) ([]model.EventRecord, error)
	FetchThumbnail(ctx context.Context, key string) (model.Thumbnail, error)
	Close() error
}
