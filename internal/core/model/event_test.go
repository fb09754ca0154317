package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		rec  EventRecord
		want string
	}{
		{"id wins", EventRecord{ID: 42, ImagePath: "/a.png", Timestamp: 100}, "id:42"},
		{"image path next", EventRecord{ImagePath: "/a.png", Timestamp: 100}, "img:/a.png"},
		{"composite fallback", EventRecord{Timestamp: 100, AppName: "sh", WindowTitle: "~"}, "evt:100|sh|~"},
		{"composite with empty fields", EventRecord{Timestamp: 0}, "evt:0||"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.IdentityKey())
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, EventRecord{Timestamp: 0}.Valid(), "epoch zero is a usable timestamp")
	assert.True(t, EventRecord{Timestamp: 1}.Valid())
	assert.False(t, EventRecord{Timestamp: -1}.Valid())
}

func TestSameActivity(t *testing.T) {
	a := EventRecord{AppName: "Terminal", WindowTitle: "~/work"}
	assert.True(t, a.SameActivity(EventRecord{AppName: "Terminal", WindowTitle: "~/work", Timestamp: 99}))
	assert.False(t, a.SameActivity(EventRecord{AppName: "Terminal", WindowTitle: "~/other"}))
	assert.False(t, a.SameActivity(EventRecord{AppName: "Browser", WindowTitle: "~/work"}))
}
