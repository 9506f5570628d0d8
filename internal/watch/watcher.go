/*-------------------------------------------------------------------------
 *
 * LATS Admin - File Watcher
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lats-admin/internal/logging"
)

// DefaultDebounce collapses the burst of events an editor or copy produces
const DefaultDebounce = 100 * time.Millisecond

// target is one watched file and its callback. A change arriving while the
// callback runs is queued once and handled when it returns.
type target struct {
	path    string
	fn      func() error
	timer   *time.Timer
	trigger chan struct{}
}

// FileWatcher watches files for changes and calls a function for each
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	targets map[string]*target
	dirs    map[string]bool

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewFileWatcher creates a watcher calling fn whenever path changes
func NewFileWatcher(path string, fn func() error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		debounce: DefaultDebounce,
		log:      logging.Component("watch"),
		targets:  make(map[string]*target),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	if err := fw.Add(path, fn); err != nil {
		watcher.Close()
		return nil, err
	}
	return fw, nil
}

// SetDebounce changes the quiet period before a callback runs. Call it
// before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.debounce = d
}

// Add watches another file. The directory is watched rather than the file
// because editors often delete and recreate files on save.
func (fw *FileWatcher) Add(path string, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	dir := filepath.Dir(abs)
	if !fw.dirs[dir] {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.dirs[dir] = true
	}

	t := &target{path: abs, fn: fn, trigger: make(chan struct{}, 1)}
	fw.targets[abs] = t
	fw.wg.Add(1)
	go fw.run(t)
	return nil
}

// Paths returns the watched files
func (fw *FileWatcher) Paths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	paths := make([]string, 0, len(fw.targets))
	for p := range fw.targets {
		paths = append(paths, p)
	}
	return paths
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go fw.watch()
}

// Stop stops watching and waits for running callbacks to return
func (fw *FileWatcher) Stop() {
	fw.stopped.Do(func() {
		close(fw.done)
		fw.watcher.Close()

		fw.mu.Lock()
		for _, t := range fw.targets {
			if t.timer != nil {
				t.timer.Stop()
			}
		}
		fw.mu.Unlock()
	})
	fw.wg.Wait()
}

// watch monitors file events and schedules callbacks
func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			fw.mu.Lock()
			t, ok := fw.targets[filepath.Clean(event.Name)]
			if ok {
				if t.timer != nil {
					t.timer.Stop()
				}
				t.timer = time.AfterFunc(fw.debounce, func() {
					select {
					case t.trigger <- struct{}{}:
					default:
					}
				})
			}
			fw.mu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn("watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

// run calls the target's function once per debounced change
func (fw *FileWatcher) run(t *target) {
	defer fw.wg.Done()

	for {
		select {
		case <-t.trigger:
			start := time.Now()
			if err := t.fn(); err != nil {
				fw.log.Error("change handler failed", "path", t.path, "error", err)
			} else {
				fw.log.Info("change handled", "path", t.path, "duration", time.Since(start))
			}
		case <-fw.done:
			return
		}
	}
}
