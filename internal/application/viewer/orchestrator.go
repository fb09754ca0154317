package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-activity-timeline/internal/core/density"
	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/index"
	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/core/ticks"
	"github.com/penwyp/go-activity-timeline/internal/data/fetcher"
	"github.com/penwyp/go-activity-timeline/internal/data/imagecache"
	"github.com/penwyp/go-activity-timeline/internal/data/store"
	"github.com/penwyp/go-activity-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-activity-timeline/internal/presentation/render"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

// Keyboard pan step sizes in engine pixels.
const (
	panStepPx    = 50.0
	cursorStepPx = 10.0
)

// Orchestrator wires the timeline components together and drives the main
// event loop: keyboard input, the UI ticker, follow-now ticks and external
// archive-change notifications all converge here.
type Orchestrator struct {
	config *ViewerConfig

	store      store.Store
	index      *index.EventIndex
	cache      *imagecache.Cache
	loader     *imagecache.Loader
	scheduler  *fetcher.Scheduler
	controller *interaction.Controller
	renderer   *render.Renderer
	display    *render.TerminalDisplay
	state      *StateManager
	watcher    *fsnotify.Watcher

	// Keys requested from the loader on the previous frame; the diff
	// against the current frame drives per-key fetch cancellation.
	requested map[string]bool

	// onSelect, when set, fires with the record confirmed by Enter.
	onSelect func(model.EventRecord)

	// onClearHighlight, when set, fires when Esc clears an active highlight.
	onClearHighlight func()

	lastWidthCells int
}

// NewOrchestrator builds the full component graph for a validated config.
func NewOrchestrator(config *ViewerConfig) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := util.InitializeTimeProvider(config.Timezone); err != nil {
		return nil, err
	}

	var st store.Store
	var err error
	if config.IsRemoteStore() {
		st = store.NewHTTPStore(config.StorePath)
	} else {
		st, err = store.NewSQLiteStore(config.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open record store: %w", err)
		}
	}

	ix := index.NewEventIndex()
	cache := imagecache.NewCache(imagecache.DefaultCapacity)
	loader := imagecache.NewLoader(st, cache, imagecache.DefaultRetryPolicy())
	scheduler := fetcher.NewScheduler(st, ix, fetcher.Config{
		IdleInterval: config.DataRefreshInterval,
	})

	display := render.NewTerminalDisplay()
	widthCells, _ := display.Size()
	widthPx := float64(widthCells) * render.PixelsPerCell

	controller := interaction.NewController(util.GetTimeProvider().NowMs(), widthPx)

	o := &Orchestrator{
		config:         config,
		store:          st,
		index:          ix,
		cache:          cache,
		loader:         loader,
		scheduler:      scheduler,
		controller:     controller,
		renderer:       render.NewRenderer(util.GetTimeProvider().Location()),
		display:        display,
		state:          NewStateManager(),
		requested:      make(map[string]bool),
		lastWidthCells: widthCells,
	}

	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		s.CursorPx = widthPx / 2
	})

	controller.SetOnChange(o.onViewChange)
	controller.SetOnSettle(o.onSettle)
	scheduler.SetOnMerged(o.onMerged)

	if !config.IsRemoteStore() {
		o.watcher = newArchiveWatcher(config.StorePath)
	}

	return o, nil
}

// SetOnSelect registers a callback fired when the user confirms a node
// selection with Enter. The detail panel opens regardless.
func (o *Orchestrator) SetOnSelect(fn func(model.EventRecord)) {
	o.onSelect = fn
}

// SetOnClearHighlight registers a callback fired when the user dismisses
// the highlighted node with Esc.
func (o *Orchestrator) SetOnClearHighlight(fn func()) {
	o.onClearHighlight = fn
}

// SetHighlight marks the node with the given identity key so the density
// planner keeps it visible regardless of spacing. An empty key clears it.
func (o *Orchestrator) SetHighlight(key string) {
	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		s.HighlightKey = key
	})
	o.display.Invalidate()
}

// onViewChange routes viewport changes to the fetch scheduler with the
// policy matching the interaction mode.
func (o *Orchestrator) onViewChange(view geometry.Mapping, mode model.InteractionMode) {
	o.scheduler.SetDragging(mode == model.ModeDragging)
	switch mode {
	case model.ModeFollowing:
		o.scheduler.PokeFollow(view)
	default:
		o.scheduler.PokeInteractive(view)
	}
}

// onSettle runs when the viewport stops moving: the drag suppression on the
// idle refresh lifts and fetches for superseded epochs are canceled.
func (o *Orchestrator) onSettle(epoch int64) {
	o.scheduler.SetDragging(false)
	o.loader.CancelEpoch(epoch)
}

func (o *Orchestrator) onMerged(added int) {
	if added > 0 {
		o.state.SetLastDataUpdate()
	}
	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		s.StatusMessage = ""
		s.IsLoading = false
		s.LoadingMessage = ""
	})
}

// forceRefresh discards all locally held data and re-queries the store.
// The epoch bump comes first: it cancels in-flight thumbnail fetches, so a
// completion racing the clear cannot repopulate the cache with stale data.
func (o *Orchestrator) forceRefresh() {
	o.controller.BumpEpoch()
	o.cache.Clear()
	o.scheduler.ForceRefresh(o.controller.View())
}

// Run drives the main loop until ctx is done or the user quits.
func (o *Orchestrator) Run(ctx context.Context) error {
	keyboard, err := interaction.NewKeyboardReader()
	if err != nil {
		return fmt.Errorf("initialize keyboard: %w", err)
	}
	defer keyboard.Close()

	o.display.EnterAlternateScreen()
	defer o.display.ExitAlternateScreen()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go o.scheduler.Run(ctx)
	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		s.IsLoading = true
		s.LoadingMessage = "loading records…"
	})
	o.scheduler.ForceRefresh(o.controller.View())

	uiTicker := time.NewTicker(time.Duration(float64(time.Second) / o.config.UIRefreshRate))
	defer uiTicker.Stop()
	followTicker := time.NewTicker(o.config.FollowInterval)
	defer followTicker.Stop()

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if o.watcher != nil {
		watchEvents = make(chan fsnotify.Event)
		watchErrors = make(chan error)
		go forwardWatcher(ctx, o.watcher, watchEvents, watchErrors)
		defer o.watcher.Close()
	}

	o.renderFrame()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-keyboard.Events():
			if quit := o.handleKey(ev); quit {
				return nil
			}

		case <-uiTicker.C:
			o.renderFrame()

		case <-followTicker.C:
			o.controller.FollowTick(util.GetTimeProvider().NowMs())

		case ev := <-watchEvents:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
				util.LogInfo(fmt.Sprintf("archive changed (%s), refreshing", ev.Op))
				o.forceRefresh()
				o.display.Invalidate()
			}

		case err := <-watchErrors:
			util.LogWarn(fmt.Sprintf("archive watcher error: %v", err))
		}
	}
}

// Close releases the record store.
func (o *Orchestrator) Close() error {
	return o.store.Close()
}

// handleKey dispatches one key event. Returns true when the viewer should
// quit.
func (o *Orchestrator) handleKey(ev interaction.KeyEvent) bool {
	view := o.controller.View()

	switch ev.Type {
	case interaction.KeyLeft:
		o.controller.PanStep(panStepPx)
		return false
	case interaction.KeyRight:
		o.controller.PanStep(-panStepPx)
		return false
	case interaction.KeyEnter:
		var confirmed string
		o.state.UpdateInteractionState(func(s *model.InteractionState) {
			if s.SelectedKey != "" {
				s.ShowDetail = !s.ShowDetail
				if s.ShowDetail {
					confirmed = s.SelectedKey
				}
			}
		})
		if confirmed != "" && o.onSelect != nil {
			if rec, ok := o.index.FindByKey(confirmed); ok {
				o.onSelect(rec)
			}
		}
		o.display.Invalidate()
		return false
	case interaction.KeyEscape:
		hadHighlight := false
		o.state.UpdateInteractionState(func(s *model.InteractionState) {
			hadHighlight = s.HighlightKey != ""
			s.ShowHelp = false
			s.ShowDetail = false
			s.SelectedKey = ""
			s.HighlightKey = ""
		})
		if hadHighlight && o.onClearHighlight != nil {
			o.onClearHighlight()
		}
		o.display.Invalidate()
		return false
	}

	switch ev.Key {
	case 'q', 3: // q or Ctrl+C
		return true

	case 'h':
		o.controller.PanStep(panStepPx)
	case 'l':
		o.controller.PanStep(-panStepPx)
	case 'H':
		o.controller.PanStep(view.Width * 0.8)
	case 'L':
		o.controller.PanStep(-view.Width * 0.8)

	case '+', '=':
		o.zoomAtCursor(true)
	case '-', '_':
		o.zoomAtCursor(false)

	case ',':
		o.moveCursor(-cursorStepPx, view.Width)
	case '.':
		o.moveCursor(cursorStepPx, view.Width)

	case 'f':
		o.toggleFollow()

	case 'g':
		now := util.GetTimeProvider().NowMs()
		o.controller.Jump(model.JumpRequest{TimeMs: now})

	case 'n':
		o.selectNode(true)
	case 'p':
		o.selectNode(false)

	case 'r':
		o.state.UpdateInteractionState(func(s *model.InteractionState) {
			s.StatusMessage = "refreshing…"
		})
		o.forceRefresh()

	case '?':
		o.state.UpdateInteractionState(func(s *model.InteractionState) {
			s.ShowHelp = !s.ShowHelp
		})
		o.display.Invalidate()
	}

	return false
}

func (o *Orchestrator) zoomAtCursor(zoomIn bool) {
	cursor := o.state.GetInteractionState().CursorPx
	o.controller.ZoomAt(cursor, zoomIn)
}

func (o *Orchestrator) moveCursor(deltaPx, widthPx float64) {
	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		s.CursorPx += deltaPx
		if s.CursorPx < 0 {
			s.CursorPx = 0
		}
		if s.CursorPx > widthPx {
			s.CursorPx = widthPx
		}
	})
}

func (o *Orchestrator) toggleFollow() {
	if o.controller.Mode() == model.ModeFollowing {
		o.controller.SetFollowNow(false)
		return
	}
	o.controller.SetFollowNow(true)
	o.controller.FollowTick(util.GetTimeProvider().NowMs())
}

func (o *Orchestrator) selectNode(forward bool) {
	key := o.state.SelectStep(forward)
	o.state.UpdateInteractionState(func(s *model.InteractionState) {
		if key == "" {
			s.StatusMessage = "no nodes in view"
		} else {
			s.StatusMessage = ""
		}
	})
}

// renderFrame runs one full pipeline pass: range query, density plan,
// thumbnail requests, frame assembly and paint.
func (o *Orchestrator) renderFrame() {
	o.syncWidth()

	view := o.controller.View()
	st := o.state.GetInteractionState()
	st.Mode = o.controller.Mode()

	start, end := view.VisibleRange()
	visible := o.index.RangeQuery(int64(start), int64(end))
	tick := ticks.Choose(view.Zoom)
	plans := density.Plan(visible, view, tick, st.HighlightKey)

	o.requestThumbnails(visible, plans)

	input := render.Input{
		View:           view,
		Events:         visible,
		Plans:          plans,
		TickInterval:   tick,
		State:          st,
		IndexSize:      o.index.Len(),
		NowMs:          util.GetTimeProvider().NowMs(),
		LastDataUpdate: o.state.GetLastDataUpdate(),
		ThumbState: func(key string) render.NodeState {
			if _, ok := o.cache.Get(key); ok {
				return render.NodeLoaded
			}
			if o.loader.IsInflight(key) {
				return render.NodeLoading
			}
			return render.NodeEmpty
		},
	}

	o.display.Render(o.renderer.Build(input))
}

// syncWidth picks up terminal resizes before each frame.
func (o *Orchestrator) syncWidth() {
	widthCells, _ := o.display.Size()
	if widthCells == o.lastWidthCells {
		return
	}
	o.lastWidthCells = widthCells
	o.controller.SetWidth(float64(widthCells) * render.PixelsPerCell)
	o.display.Invalidate()
}

// requestThumbnails starts fetches for image-eligible nodes and cancels
// fetches for keys that lost eligibility since the previous frame.
func (o *Orchestrator) requestThumbnails(visible []model.EventRecord, plans []density.NodePlan) {
	epoch := o.controller.Epoch()

	current := make(map[string]bool, len(plans))
	keys := make([]string, 0, len(plans))
	for _, p := range plans {
		if !p.ShowImage {
			continue
		}
		key := visible[p.Index].IdentityKey()
		current[key] = true
		keys = append(keys, key)
		prio := imagecache.PriorityNormal
		if p.Highlighted {
			prio = imagecache.PriorityHigh
		}
		o.loader.Request(key, epoch, prio)
	}

	for key := range o.requested {
		if !current[key] {
			o.loader.CancelKey(key)
		}
	}
	o.requested = current
	o.state.SetNodeKeys(keys)
}

// forwardWatcher relays fsnotify events to the orchestrator loop so the
// select stays flat.
func forwardWatcher(ctx context.Context, w *fsnotify.Watcher, events chan<- fsnotify.Event, errs chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}

// newArchiveWatcher watches the SQLite archive for external writes; a nil
// return just disables live refresh.
func newArchiveWatcher(path string) *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		util.LogWarn(fmt.Sprintf("archive watcher unavailable: %v", err))
		return nil
	}
	if err := w.Add(path); err != nil {
		util.LogWarn(fmt.Sprintf("cannot watch %s: %v", path, err))
		w.Close()
		return nil
	}
	return w
}
