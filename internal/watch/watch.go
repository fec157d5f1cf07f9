// Package watch turns filesystem events under a root directory into
// debounced batches of changed relative paths, handed to a caller-supplied
// onBatch callback. It owns no storage or embedding logic.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger watches rootDir and invokes onBatch with the set of changed
// repository-relative paths after events settle for the debounce window.
type Trigger struct {
	rootDir  string
	debounce time.Duration

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Trigger rooted at rootDir with the given debounce window.
// A zero debounce defaults to 500ms.
func New(rootDir string, debounce time.Duration) (*Trigger, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Trigger{
		rootDir:  rootDir,
		debounce: debounce,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := t.watchRecursively(rootDir); err != nil {
		watcher.Close()
		return nil, err
	}
	return t, nil
}

// Start begins watching for changes in the background, invoking onBatch
// once per debounce window with every relative path that changed.
func (t *Trigger) Start(ctx context.Context, onBatch func([]string)) {
	go t.run(ctx, onBatch)
}

// Stop halts the watcher and waits for the run loop to exit.
func (t *Trigger) Stop() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.doneCh
		t.watcher.Close()
	})
	return nil
}

func (t *Trigger) run(ctx context.Context, onBatch func([]string)) {
	defer close(t.doneCh)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	changed := make(map[string]struct{})

	resetTimer := func() {
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer = time.AfterFunc(t.debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-t.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(t.rootDir, event.Name)
			if err != nil {
				continue
			}
			changed[filepath.ToSlash(rel)] = struct{}{}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = t.watchRecursively(event.Name)
				}
			}
			resetTimer()
		case <-fire:
			if len(changed) == 0 {
				continue
			}
			batch := make([]string, 0, len(changed))
			for p := range changed {
				batch = append(batch, p)
			}
			changed = make(map[string]struct{})
			onBatch(batch)
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (t *Trigger) watchRecursively(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "." && (name == ".git" || name == "node_modules" || name == ".semindex") {
			return filepath.SkipDir
		}
		return t.watcher.Add(path)
	})
}
