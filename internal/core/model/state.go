package model

// InteractionMode is the viewport state machine's current mode.
type InteractionMode int

const (
	ModeIdle InteractionMode = iota
	ModeDragging
	ModeFollowing
)

func (m InteractionMode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeFollowing:
		return "following"
	default:
		return "idle"
	}
}

// InteractionState carries the transient UI state the orchestrator feeds to
// the renderer on every pass.
type InteractionState struct {
	Mode           InteractionMode
	CursorPx       float64 // zoom anchor, in viewport pixels
	HighlightKey   string  // identity key forced visible, "" for none
	SelectedKey    string  // identity key of the keyboard selection
	ShowHelp       bool
	ShowDetail     bool
	StatusMessage  string
	IsLoading      bool
	LoadingMessage string
}
