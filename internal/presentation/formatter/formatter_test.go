package formatter

import (
	"io"
	"os"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := fn()

	w.Close()
	os.Stdout = old
	require.NoError(t, err)

	out, _ := io.ReadAll(r)
	return string(out)
}

func sampleRecords() []model.EventRecord {
	return []model.EventRecord{
		{ID: 1, Timestamp: 1_700_000_000_000, AppName: "Terminal", WindowTitle: "~/work", ImagePath: "/shots/1.png"},
		{ID: 2, Timestamp: 1_700_000_060_000, AppName: "浏览器", WindowTitle: "文档"},
	}
}

func TestTableFormatterOutput(t *testing.T) {
	util.InitializeTimeProvider("UTC")

	out := captureStdout(t, func() error {
		return NewTableFormatter().Format(sampleRecords())
	})

	for _, want := range []string{"Terminal", "~/work", "浏览器", "1m0s", "✓", "2 records", "┌", "└"} {
		assert.Contains(t, out, want)
	}
}

func TestTableFormatterEmpty(t *testing.T) {
	out := captureStdout(t, func() error {
		return NewTableFormatter().Format(nil)
	})
	assert.Contains(t, out, "0 records")
}

func TestJSONFormatterRoundTrips(t *testing.T) {
	out := captureStdout(t, func() error {
		return NewJSONFormatter().Format(sampleRecords())
	})

	var got []model.EventRecord
	require.NoError(t, sonic.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Terminal", got[0].AppName)
	assert.Equal(t, int64(1_700_000_060_000), got[1].Timestamp)
}
