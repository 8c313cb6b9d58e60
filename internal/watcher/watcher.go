// internal/watcher/watcher.go
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/douju/douju-editor/internal/utils"
)

// Event is one observed change to a saved project file.
type Event struct {
	Type      string // "created", "modified", "deleted", "renamed"
	Name      string // project name, file basename without .json
	Path      string
	Timestamp time.Time
}

// ProjectWatcher observes the projects directory for external edits to
// saved project files. Bursts of writes to the same file are debounced
// into a single callback.
type ProjectWatcher struct {
	watcher      *fsnotify.Watcher
	dir          string
	debounceTime time.Duration
	onChange     func(Event)
	logger       *utils.Logger

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	debounce  map[string]*time.Timer
}

// Config configures a ProjectWatcher.
type Config struct {
	Dir          string        // directory holding saved project files
	DebounceTime time.Duration // default 500ms
	OnChange     func(Event)   // invoked after the debounce window
}

// NewProjectWatcher creates a watcher over the projects directory.
func NewProjectWatcher(config Config) (*ProjectWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if config.DebounceTime == 0 {
		config.DebounceTime = 500 * time.Millisecond
	}

	pw := &ProjectWatcher{
		watcher:      fsWatcher,
		dir:          config.Dir,
		debounceTime: config.DebounceTime,
		onChange:     config.OnChange,
		logger:       utils.GetLogger(),
		stopChan:     make(chan struct{}),
		debounce:     make(map[string]*time.Timer),
	}

	if err := fsWatcher.Add(config.Dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", config.Dir, err)
	}
	return pw, nil
}

// Start begins dispatching events. It returns an error if the watcher is
// already running.
func (pw *ProjectWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.isRunning {
		return fmt.Errorf("watcher already running")
	}
	pw.isRunning = true
	pw.logger.Info("project watcher started", map[string]interface{}{"dir": pw.dir})

	go pw.loop()
	return nil
}

func (pw *ProjectWatcher) loop() {
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handle(event)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Error("watcher error", map[string]interface{}{"error": err.Error()})

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *ProjectWatcher) handle(event fsnotify.Event) {
	// Only saved project files are interesting. Atomic saves write a
	// .tmp first; those intermediate events are skipped.
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = "created"
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = "modified"
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = "deleted"
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = "renamed"
	default:
		return
	}

	we := Event{
		Type:      eventType,
		Name:      strings.TrimSuffix(filepath.Base(event.Name), ".json"),
		Path:      event.Name,
		Timestamp: time.Now(),
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()
	if timer, exists := pw.debounce[event.Name]; exists {
		timer.Stop()
	}
	pw.debounce[event.Name] = time.AfterFunc(pw.debounceTime, func() {
		pw.mu.Lock()
		delete(pw.debounce, event.Name)
		running := pw.isRunning
		pw.mu.Unlock()

		if running && pw.onChange != nil {
			pw.onChange(we)
		}
	})
}

// Stop halts dispatching and releases the underlying watcher.
func (pw *ProjectWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if !pw.isRunning {
		return fmt.Errorf("watcher not running")
	}
	pw.isRunning = false
	close(pw.stopChan)

	for _, timer := range pw.debounce {
		timer.Stop()
	}
	pw.debounce = make(map[string]*time.Timer)

	if err := pw.watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	pw.logger.Info("project watcher stopped", nil)
	return nil
}

// IsRunning reports whether the watcher dispatches events.
func (pw *ProjectWatcher) IsRunning() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.isRunning
}
