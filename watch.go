// FILE: lixenwraith/params/watch.go
package params

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Watch timing and limits
const (
	MinPollInterval      = 100 * time.Millisecond
	DefaultPollInterval  = time.Second
	DefaultDebounce      = 500 * time.Millisecond
	DefaultReloadTimeout = 5 * time.Second
	DefaultMaxWatchers   = 100

	// stop waits up to stopWaitCycles*stopWaitInterval for the poll loop to exit
	stopWaitInterval = 5 * time.Millisecond
	stopWaitCycles   = 20
)

// Notifications sent on watch channels besides changed field paths
const (
	EventFileDeleted        = "file_deleted"
	EventPermissionsChanged = "permissions_changed"
	EventReloadTimeout      = "reload_timeout"
	EventReloadErrorPrefix  = "reload_error:"
)

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxWatchers limits concurrent watch channels
	MaxWatchers int

	// ReloadTimeout for file reload operations
	ReloadTimeout time.Duration

	// VerifyPermissions refuses to reload when group/other permission bits change
	VerifyPermissions bool
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:      DefaultPollInterval,
		Debounce:          DefaultDebounce,
		MaxWatchers:       DefaultMaxWatchers,
		ReloadTimeout:     DefaultReloadTimeout,
		VerifyPermissions: true,
	}
}

// watcher polls the parameter file and republishes the store on change
type watcher struct {
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	opts             WatchOptions
	filePath         string
	lastModTime      time.Time
	lastSize         int64
	lastMode         os.FileMode
	watching         atomic.Bool
	reloadInProgress atomic.Bool
	watchers         map[int64]chan string
	watcherID        atomic.Int64
	debounceTimer    *time.Timer
}

// AutoUpdate enables automatic reloading when the parameter file changes
func (s *Store) AutoUpdate() {
	s.AutoUpdateWithOptions(DefaultWatchOptions())
}

// AutoUpdateWithOptions enables automatic reloading with custom options
func (s *Store) AutoUpdateWithOptions(opts WatchOptions) {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxWatchers <= 0 {
		opts.MaxWatchers = DefaultMaxWatchers
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	filePath := s.filePath
	if filePath == "" {
		return
	}

	if s.watcher != nil && s.watcher.filePath != filePath {
		s.watcher.stop()
		s.watcher = nil
	}

	if s.watcher == nil {
		ctx, cancel := context.WithCancel(context.Background())
		w := &watcher{
			ctx:      ctx,
			cancel:   cancel,
			opts:     opts,
			filePath: filePath,
			watchers: make(map[int64]chan string),
		}
		if info, err := os.Stat(filePath); err == nil {
			w.lastModTime = info.ModTime()
			w.lastSize = info.Size()
			w.lastMode = info.Mode()
		}
		s.watcher = w
		s.logger.Debug("watching parameter file", "path", filePath, "poll", opts.PollInterval)
		go w.watchLoop(s)
	}
}

// StopAutoUpdate stops automatic reloading and closes every watch channel
func (s *Store) StopAutoUpdate() {
	s.mutex.Lock()
	w := s.watcher
	s.watcher = nil
	s.mutex.Unlock()

	if w != nil {
		w.stop()
	}
}

// Watch returns a channel that receives the dotted paths of changed fields
func (s *Store) Watch() <-chan string {
	return s.WatchWithOptions(DefaultWatchOptions())
}

// WatchWithOptions subscribes to changes, starting the watcher if needed
func (s *Store) WatchWithOptions(opts WatchOptions) <-chan string {
	s.mutex.RLock()
	w := s.watcher
	filePath := s.filePath
	s.mutex.RUnlock()

	if filePath == "" {
		return closedChannel()
	}
	if w != nil && w.filePath == filePath {
		return w.subscribe()
	}

	s.AutoUpdateWithOptions(opts)

	s.mutex.RLock()
	w = s.watcher
	s.mutex.RUnlock()
	if w == nil {
		return closedChannel()
	}
	return w.subscribe()
}

// WatchFile loads a different file and moves the watcher to it
func (s *Store) WatchFile(filePath string, formatHint ...string) error {
	s.mutex.RLock()
	opts := DefaultWatchOptions()
	if s.watcher != nil {
		opts = s.watcher.opts
	}
	args, loadOpts := s.args, s.options
	s.mutex.RUnlock()

	s.StopAutoUpdate()

	if len(formatHint) > 0 {
		if err := s.SetFileFormat(formatHint[0]); err != nil {
			return fmt.Errorf("invalid format hint: %w", err)
		}
	}
	if err := s.LoadWithOptions(filePath, args, loadOpts); err != nil {
		return fmt.Errorf("failed to load new file for watching: %w", err)
	}

	s.AutoUpdateWithOptions(opts)
	return nil
}

// IsWatching returns true if auto-update is running
func (s *Store) IsWatching() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.watcher != nil && s.watcher.watching.Load()
}

// WatcherCount returns the number of active watch channels
func (s *Store) WatcherCount() int {
	s.mutex.RLock()
	w := s.watcher
	s.mutex.RUnlock()
	if w == nil {
		return 0
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.watchers)
}

func closedChannel() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}

// watchLoop is the main file watching loop
func (w *watcher) watchLoop(s *Store) {
	if !w.watching.CompareAndSwap(false, true) {
		return
	}
	defer w.watching.Store(false)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkAndReload(s)
		}
	}
}

// checkAndReload checks if the file changed and schedules a debounced reload
func (w *watcher) checkAndReload(s *Store) {
	info, err := os.Stat(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			w.notifyWatchers(EventFileDeleted)
		}
		return
	}

	if w.opts.VerifyPermissions && w.lastMode != 0 && info.Mode() != w.lastMode {
		if (info.Mode() & 0077) != (w.lastMode & 0077) {
			w.notifyWatchers(EventPermissionsChanged)
			return
		}
	}

	if info.ModTime().Equal(w.lastModTime) && info.Size() == w.lastSize {
		return
	}
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()
	w.lastMode = info.Mode()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, func() {
		w.performReload(s)
	})
	w.mu.Unlock()
}

// performReload rebuilds the snapshot and reports the fields that changed
func (w *watcher) performReload(s *Store) {
	if !w.reloadInProgress.CompareAndSwap(false, true) {
		return
	}
	defer w.reloadInProgress.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	before := s.Snapshot()

	done := make(chan error, 1)
	go func() {
		done <- s.Reload()
	}()

	select {
	case err := <-done:
		// non-fatal errors such as a missing file still publish a snapshot
		if err != nil {
			s.log().Warn("parameter reload failed", "path", w.filePath, "error", err)
			w.notifyWatchers(EventReloadErrorPrefix + err.Error())
		}
		for _, path := range changedPaths(before, s.Snapshot()) {
			w.notifyWatchers(path)
		}

	case <-ctx.Done():
		w.notifyWatchers(EventReloadTimeout)
	}
}

// changedPaths compares two snapshots leaf by leaf
func changedPaths(before, after *Object) []string {
	var oldValues, newValues map[string]any
	if before != nil {
		oldValues = flattenMap(before.ToMap(), "")
	}
	if after != nil {
		newValues = flattenMap(after.ToMap(), "")
	}

	var changed []string
	for path, newVal := range newValues {
		if oldVal, existed := oldValues[path]; !existed || !valueEqual(oldVal, newVal) {
			changed = append(changed, path)
		}
	}
	for path := range oldValues {
		if _, exists := newValues[path]; !exists {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// subscribe creates a new watcher channel
func (w *watcher) subscribe() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil || len(w.watchers) >= w.opts.MaxWatchers {
		return closedChannel()
	}

	ch := make(chan string, 10)
	id := w.watcherID.Add(1)
	w.watchers[id] = ch

	go func() {
		<-w.ctx.Done()
		w.mu.Lock()
		delete(w.watchers, id)
		close(ch)
		w.mu.Unlock()
	}()

	return ch
}

// notifyWatchers sends a notification to all subscribers without blocking
func (w *watcher) notifyWatchers(event string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

// stop terminates the watcher
func (w *watcher) stop() {
	if w.cancel != nil {
		w.cancel()
	}

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()

	for i := 0; i < stopWaitCycles && w.watching.Load(); i++ {
		time.Sleep(stopWaitInterval)
	}
}
