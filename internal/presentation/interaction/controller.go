package interaction

import (
	"sync"
	"time"

	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

const (
	// ZoomStepFactor multiplies/divides zoom per zoom keypress or wheel tick.
	ZoomStepFactor = 1.2

	// ClearZoom is the minimum zoom a jump lands at: 1px per second keeps
	// the target event legible instead of a speck on a year-wide axis.
	ClearZoom = 0.001

	// settleDelay is the quiet period after the last zoom/pan step before
	// the viewport counts as settled and the epoch is bumped.
	settleDelay = 160 * time.Millisecond
)

// Controller owns the viewport state machine: drag-to-pan, cursor-anchored
// zoom, jump-to-timestamp and follow-now. All mutations are synchronous
// local state changes; downstream components observe through callbacks.
type Controller struct {
	mu     sync.Mutex
	view   geometry.Mapping
	mode   model.InteractionMode
	epoch  int64
	settle *time.Timer

	onChange func(view geometry.Mapping, mode model.InteractionMode)
	onSettle func(epoch int64)
}

func NewController(centerMs int64, widthPx float64) *Controller {
	return &Controller{
		view: geometry.Mapping{
			CenterTime: float64(centerMs),
			Zoom:       geometry.ClampZoom(ClearZoom),
			Width:      widthPx,
		},
		mode: model.ModeIdle,
	}
}

// SetOnChange registers the viewport-change observer. The mode tells the
// fetch scheduler whether to debounce (interactive) or throttle (follow).
func (c *Controller) SetOnChange(cb func(view geometry.Mapping, mode model.InteractionMode)) {
	c.mu.Lock()
	c.onChange = cb
	c.mu.Unlock()
}

// SetOnSettle registers the epoch-bump observer, fired whenever the
// viewport settles after a drag end, zoom idle or jump.
func (c *Controller) SetOnSettle(cb func(epoch int64)) {
	c.mu.Lock()
	c.onSettle = cb
	c.mu.Unlock()
}

// View returns the current viewport mapping.
func (c *Controller) View() geometry.Mapping {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Mode returns the current interaction mode.
func (c *Controller) Mode() model.InteractionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Epoch returns the current viewport generation.
func (c *Controller) Epoch() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// SetWidth updates the viewport pixel width on terminal resize.
func (c *Controller) SetWidth(widthPx float64) {
	c.mu.Lock()
	c.view.Width = widthPx
	view, cb, mode := c.view, c.onChange, c.mode
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
}

// BeginDrag enters dragging mode and disables follow-now.
func (c *Controller) BeginDrag() {
	c.mu.Lock()
	c.mode = model.ModeDragging
	c.mu.Unlock()
}

// DragBy pans the viewport by a pixel delta while dragging.
func (c *Controller) DragBy(deltaPx float64) {
	c.mu.Lock()
	c.view.CenterTime -= deltaPx / c.view.Zoom
	view, cb, mode := c.view, c.onChange, c.mode
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
}

// EndDrag leaves dragging mode and bumps the epoch: in-flight thumbnail
// fetches for the superseded view are no longer relevant.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	c.mode = model.ModeIdle
	c.mu.Unlock()
	c.bumpEpoch()
}

// PanStep is the keyboard analog of a short drag: the viewer is in dragging
// mode for the duration of the burst and settles back to idle after the
// quiet period, so held-down keys coalesce into one epoch bump and suppress
// the idle refresh like a pointer drag would.
func (c *Controller) PanStep(deltaPx float64) {
	c.mu.Lock()
	c.mode = model.ModeDragging
	c.view.CenterTime -= deltaPx / c.view.Zoom
	view, cb, mode := c.view, c.onChange, c.mode
	c.scheduleSettleLocked()
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
}

// ZoomAt applies one zoom step anchored at cursorPx: the timestamp under
// the cursor before the step maps back to the same pixel after it.
func (c *Controller) ZoomAt(cursorPx float64, zoomIn bool) {
	c.mu.Lock()
	if c.mode == model.ModeFollowing {
		c.mode = model.ModeIdle
	}

	anchor := c.view.ToTime(cursorPx)
	factor := ZoomStepFactor
	if !zoomIn {
		factor = 1 / ZoomStepFactor
	}
	c.view.Zoom = geometry.ClampZoom(c.view.Zoom * factor)
	c.view.CenterTime = anchor - (cursorPx-c.view.Width/2)/c.view.Zoom

	view, cb, mode := c.view, c.onChange, c.mode
	c.scheduleSettleLocked()
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
}

// Jump centers the viewport on a timestamp, raising zoom to a clear level
// when the current one is too coarse, and settles immediately.
func (c *Controller) Jump(req model.JumpRequest) {
	c.mu.Lock()
	c.mode = model.ModeIdle
	c.view.CenterTime = float64(req.TimeMs)
	if c.view.Zoom < ClearZoom {
		c.view.Zoom = geometry.ClampZoom(ClearZoom)
	}
	view, cb, mode := c.view, c.onChange, c.mode
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
	c.bumpEpoch()
}

// SetFollowNow toggles follow-now mode. The actual per-frame scroll comes
// from FollowTick, driven by an explicit ticker the orchestrator starts and
// stops on mode transitions.
func (c *Controller) SetFollowNow(on bool) {
	c.mu.Lock()
	if on {
		c.mode = model.ModeFollowing
	} else if c.mode == model.ModeFollowing {
		c.mode = model.ModeIdle
	}
	c.mu.Unlock()
	if !on {
		c.bumpEpoch()
	}
}

// FollowTick advances the viewport to "now" while in follow mode.
func (c *Controller) FollowTick(nowMs int64) {
	c.mu.Lock()
	if c.mode != model.ModeFollowing {
		c.mu.Unlock()
		return
	}
	c.view.CenterTime = float64(nowMs)
	view, cb, mode := c.view, c.onChange, c.mode
	c.mu.Unlock()
	if cb != nil {
		cb(view, mode)
	}
}

// BumpEpoch invalidates the current viewport generation immediately and
// fires the settle callback. Forced refreshes use this so fetches already
// in flight cannot repopulate a cache that is about to be cleared.
func (c *Controller) BumpEpoch() {
	c.bumpEpoch()
}

// scheduleSettleLocked (re)arms the settle timer; the caller holds c.mu.
func (c *Controller) scheduleSettleLocked() {
	if c.settle != nil {
		c.settle.Stop()
	}
	c.settle = time.AfterFunc(settleDelay, c.bumpEpoch)
}

func (c *Controller) bumpEpoch() {
	c.mu.Lock()
	if c.mode == model.ModeDragging {
		c.mode = model.ModeIdle
	}
	c.epoch++
	epoch, cb := c.epoch, c.onSettle
	c.mu.Unlock()
	if cb != nil {
		cb(epoch)
	}
}
