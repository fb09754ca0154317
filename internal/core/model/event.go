package model

import (
	"fmt"
	"strconv"
)

// EventRecord is a single screen-activity observation: which application and
// window were on screen at a point in time, plus a pointer to the captured
// thumbnail. Records are immutable once merged into the index.
type EventRecord struct {
	ID          int64  `json:"id,omitempty"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
	ImagePath   string `json:"imagePath,omitempty"`
	AppName     string `json:"appName,omitempty"`
	WindowTitle string `json:"windowTitle,omitempty"`
	ProcessIcon string `json:"processIcon,omitempty"` // base64 PNG
	ProcessPath string `json:"processPath,omitempty"`
}

// Valid reports whether the record carries a usable timestamp.
// Records failing this are dropped at merge time, never surfaced.
func (e EventRecord) Valid() bool {
	return e.Timestamp >= 0
}

// IdentityKey returns the deduplication key: the record id when present,
// else the image path, else a composite of timestamp, app and title.
func (e EventRecord) IdentityKey() string {
	if e.ID != 0 {
		return "id:" + strconv.FormatInt(e.ID, 10)
	}
	if e.ImagePath != "" {
		return "img:" + e.ImagePath
	}
	return fmt.Sprintf("evt:%d|%s|%s", e.Timestamp, e.AppName, e.WindowTitle)
}

// SameActivity reports whether two records belong to the same activity
// segment, i.e. share the (appName, windowTitle) pair.
func (e EventRecord) SameActivity(other EventRecord) bool {
	return e.AppName == other.AppName && e.WindowTitle == other.WindowTitle
}

// Thumbnail is a decoded screenshot image as delivered by the record store.
type Thumbnail struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// JumpRequest asks the viewer to center on a timestamp. RequestID
// disambiguates repeated jumps to the same time.
type JumpRequest struct {
	TimeMs    int64  `json:"time"`
	RequestID string `json:"requestId"`
}
