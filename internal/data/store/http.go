package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// HTTPStore is a client for a remote record store speaking the serve
// command's JSON API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) QueryTimeline(ctx context.Context, startMs, endMs int64) ([]model.EventRecord, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(startMs, 10))
	q.Set("end", strconv.FormatInt(endMs, 10))

	body, err := s.get(ctx, "/api/timeline?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var records []model.EventRecord
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode timeline response: %w", err)
	}
	return records, nil
}

func (s *HTTPStore) FetchThumbnail(ctx context.Context, key string) (model.Thumbnail, error) {
	q := url.Values{}
	q.Set("key", key)

	body, err := s.get(ctx, "/api/thumbnail?"+q.Encode())
	if err != nil {
		return model.Thumbnail{}, err
	}

	var thumb model.Thumbnail
	if err := sonic.Unmarshal(body, &thumb); err != nil {
		return model.Thumbnail{}, fmt.Errorf("failed to decode thumbnail response: %w", err)
	}
	return thumb, nil
}

func (s *HTTPStore) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("record store returned %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
