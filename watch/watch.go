// Package watch observes filesystem roots and coalesces bursts of
// change events into single rebuild triggers. One watcher instance can
// cover multiple roots; all of them feed a single debounce timeline,
// so a burst touching several roots still produces one trigger.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// State is the debouncer's position in its Idle → Pending → Firing
// cycle.
type State int

const (
	// StateIdle means no window is open and no timer is armed.
	StateIdle State = iota
	// StatePending means a window is open; further events extend it.
	StatePending
	// StateFiring means the coalesced set is being delivered.
	StateFiring
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	default:
		return "unknown"
	}
}

// ChangeFunc receives the sorted union of paths that changed within
// one debounce window.
type ChangeFunc func(paths []string)

// ErrorFunc receives notifier-level errors that did not stop the
// watch loop.
type ErrorFunc func(err error)

// Filter reports whether a changed path should be observed. A path is
// dropped if any registered filter rejects it.
type Filter func(path string) bool

// Debouncer collapses bursts of raw change notifications into single
// triggers. Every observed path joins the pending set and either opens
// the window (Idle) or extends it (Pending); when the window elapses
// with no further events, the coalesced set is delivered once on the
// Triggers channel and the debouncer returns to Idle. It is safe for
// concurrent use and usable on its own, without a real filesystem,
// which is how its tests exercise the state machine.
type Debouncer struct {
	window time.Duration
	out    chan []string

	mu      sync.Mutex
	state   State
	pending map[string]struct{}
	timer   *time.Timer
	closed  bool
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		out:     make(chan []string, 1),
		state:   StateIdle,
		pending: make(map[string]struct{}),
	}
}

// Observe records one raw event path. Events are never dropped: the
// path always joins the pending set, and the window timer restarts.
func (d *Debouncer) Observe(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.state = StatePending
	d.timer = time.AfterFunc(d.window, d.fire)
}

// Triggers returns the channel carrying one coalesced path set per
// elapsed debounce window.
func (d *Debouncer) Triggers() <-chan []string {
	return d.out
}

// State returns the debouncer's current state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close disarms any pending timer and stops the debouncer. A window
// that was open when Close is called never fires.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.state = StateIdle
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed || len(d.pending) == 0 {
		d.state = StateIdle
		d.mu.Unlock()
		return
	}
	d.state = StateFiring
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	d.mu.Unlock()

	sort.Strings(paths)

	// Buffered by one; a trigger is only lost here if the previous one
	// has not been consumed yet, in which case the paths rejoin the
	// pending set and the window reopens rather than dropping them.
	select {
	case d.out <- paths:
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
	default:
		d.mu.Lock()
		if !d.closed {
			for _, p := range paths {
				d.pending[p] = struct{}{}
			}
			d.state = StatePending
			d.timer = time.AfterFunc(d.window, d.fire)
		} else {
			d.state = StateIdle
		}
		d.mu.Unlock()
	}
}

// Watcher observes one or more filesystem roots through fsnotify and
// debounces their raw events into rebuild triggers.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer

	mu       sync.RWMutex
	filters  []Filter
	onChange ChangeFunc
	onError  ErrorFunc

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ErrAllRootsLost is reported through the error callback when the
// notifier has no watchable paths left; the watch loop terminates
// after surfacing it.
var ErrAllRootsLost = errors.New("all watched roots lost")

// New creates a watcher with the given debounce window.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(debounce),
		done:      make(chan struct{}),
	}, nil
}

// Add watches a single path.
func (w *Watcher) Add(path string) error {
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	return nil
}

// AddRecursive watches root and every directory below it. Roots added
// to the same watcher share one debounce timeline.
func (w *Watcher) AddRecursive(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	return nil
}

// AddFilter registers a path filter. A changed path must pass every
// filter to be observed.
func (w *Watcher) AddFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// OnChange registers the rebuild callback. It is invoked at most once
// per debounce window, with the sorted union of changed paths, on the
// watcher's delivery goroutine; a slow callback delays the next
// delivery but does not lose events.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// OnError registers a callback for notifier-level errors. Such errors
// do not stop the watch loop.
func (w *Watcher) OnError(fn ErrorFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start launches the listener and delivery goroutines. The watcher
// runs until the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.listen(ctx)
	go w.deliver(ctx)
}

// Stop shuts the watcher down: the OS notifier is closed, the debounce
// timer is disarmed, and both goroutines are waited for. An open
// debounce window at shutdown never fires.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.debouncer.Close()
	})
	w.wg.Wait()
	return err
}

func (w *Watcher) listen(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.mu.RLock()
			onError := w.onError
			w.mu.RUnlock()
			if onError != nil {
				onError(err)
			}
			// A notifier error with nothing left to watch is fatal for
			// the loop; anything else keeps the remaining roots alive.
			if len(w.fs.WatchList()) == 0 {
				if onError != nil {
					onError(ErrAllRootsLost)
				}
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.RLock()
	filters := w.filters
	w.mu.RUnlock()
	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	// A created directory must join the watch so files added inside it
	// are seen too.
	if event.Op.Has(fsnotify.Create) {
		_ = w.fs.Add(event.Name)
	}

	w.debouncer.Observe(event.Name)
}

func (w *Watcher) deliver(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case paths := <-w.debouncer.Triggers():
			w.mu.RLock()
			onChange := w.onChange
			w.mu.RUnlock()
			if onChange != nil {
				onChange(paths)
			}
		}
	}
}

// Common path filters.

// NoHidden rejects dotfiles and paths inside dot-directories.
func NoHidden(path string) bool {
	base := filepath.Base(path)
	if len(base) > 1 && base[0] == '.' {
		return false
	}
	return !containsDotDir(path)
}

func containsDotDir(path string) bool {
	dir := filepath.Dir(path)
	for dir != "." && dir != string(filepath.Separator) {
		base := filepath.Base(dir)
		if len(base) > 1 && base[0] == '.' {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

// NoEditorTemp rejects the backup and swap files common editors leave
// next to the real file.
func NoEditorTemp(path string) bool {
	base := filepath.Base(path)
	if len(base) > 0 && base[len(base)-1] == '~' {
		return false
	}
	switch filepath.Ext(base) {
	case ".swp", ".swx", ".tmp":
		return false
	}
	return true
}
