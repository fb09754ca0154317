package viewer

import (
	"sync"
	"time"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// StateManager manages viewer UI state in a thread-safe manner. Viewport
// geometry lives in the interaction controller; this holds everything else
// the renderer needs.
type StateManager struct {
	mu sync.RWMutex

	interactionState model.InteractionState

	// Image-eligible keys from the last density plan, in screen order.
	// Selection with n/p cycles through these.
	nodeKeys []string

	lastDataUpdate int64
}

func NewStateManager() *StateManager {
	return &StateManager{
		interactionState: model.InteractionState{},
	}
}

// GetInteractionState returns a copy of the current interaction state.
func (sm *StateManager) GetInteractionState() model.InteractionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.interactionState
}

// UpdateInteractionState mutates the interaction state under the lock.
func (sm *StateManager) UpdateInteractionState(updateFunc func(*model.InteractionState)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	updateFunc(&sm.interactionState)
}

// SetNodeKeys records the image-eligible keys of the latest frame.
func (sm *StateManager) SetNodeKeys(keys []string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.nodeKeys = keys
}

// SelectStep moves the selection forward or backward through the current
// node keys and returns the newly selected key.
func (sm *StateManager) SelectStep(forward bool) string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.nodeKeys) == 0 {
		return ""
	}

	current := -1
	for i, k := range sm.nodeKeys {
		if k == sm.interactionState.SelectedKey {
			current = i
			break
		}
	}

	var next int
	switch {
	case current == -1 && forward:
		next = 0
	case current == -1:
		next = len(sm.nodeKeys) - 1
	case forward:
		next = (current + 1) % len(sm.nodeKeys)
	default:
		next = (current - 1 + len(sm.nodeKeys)) % len(sm.nodeKeys)
	}

	sm.interactionState.SelectedKey = sm.nodeKeys[next]
	sm.interactionState.HighlightKey = sm.nodeKeys[next]
	return sm.nodeKeys[next]
}

// SetLastDataUpdate records when a merge last brought in new records.
func (sm *StateManager) SetLastDataUpdate() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastDataUpdate = time.Now().Unix()
}

// GetLastDataUpdate returns the timestamp of the last data update.
func (sm *StateManager) GetLastDataUpdate() int64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastDataUpdate
}
