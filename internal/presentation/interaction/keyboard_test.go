package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	kr := &KeyboardReader{}

	tests := []struct {
		name string
		buf  []byte
		want *KeyEvent
	}{
		{"plain char", []byte{'q'}, &KeyEvent{Key: 'q', Type: KeyChar}},
		{"ctrl+c", []byte{3}, &KeyEvent{Key: 3, Type: KeyChar}},
		{"carriage return", []byte{'\r'}, &KeyEvent{Type: KeyEnter}},
		{"newline", []byte{'\n'}, &KeyEvent{Type: KeyEnter}},
		{"bare escape", []byte{27}, &KeyEvent{Key: 27, Type: KeyEscape}},
		{"arrow up", []byte{27, '[', 'A'}, &KeyEvent{Type: KeyUp}},
		{"arrow down", []byte{27, '[', 'B'}, &KeyEvent{Type: KeyDown}},
		{"arrow right", []byte{27, '[', 'C'}, &KeyEvent{Type: KeyRight}},
		{"arrow left", []byte{27, '[', 'D'}, &KeyEvent{Type: KeyLeft}},
		{"unknown escape", []byte{27, '[', 'Z'}, nil},
		{"empty", nil, nil},
		{"zoom key", []byte{'+'}, &KeyEvent{Key: '+', Type: KeyChar}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kr.parseInput(tt.buf)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}
