package gateway

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"switchboard/pkg/logger"
)

const debounceDelay = 100 * time.Millisecond

// Watcher monitors the config file and applies runtime-adjustable settings
// when it changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    []string
	onChange func(path string)
	stopCh   chan struct{}
	debounce map[string]*time.Timer
	mu       sync.Mutex
}

// NewWatcher creates a new file watcher. onChange is invoked, debounced,
// for each changed path.
func NewWatcher(onChange func(path string), paths ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  w,
		paths:    paths,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	for _, path := range w.paths {
		if err := w.watcher.Add(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
	}

	go w.run()
	return nil
}

// run processes file system events.
func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only handle write and create events
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleEvent(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("File watcher error")
		}
	}
}

// handleEvent handles a file change event with debouncing.
func (w *Watcher) handleEvent(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}

	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		logger.Debug().Str("path", path).Msg("Config file changed")
		w.onChange(path)

		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
	})
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)

	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	w.mu.Unlock()

	w.watcher.Close()
}
