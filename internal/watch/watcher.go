// Package watch turns filesystem create events under a root directory into
// serialized handler calls, one path at a time.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"cfgpush/internal/cfgpush"
)

// HandlerFunc processes one arrived file. It must not return before it is
// done with path; the next arrival is not dispatched until it does.
type HandlerFunc func(ctx context.Context, path string)

// Tree is the filesystem view the watcher needs.
type Tree interface {
	Resolve(rawPath string) (*cfgpush.Path, error)
	FindDirs(dir string) ([]string, error)
	FindFiles(dir, ext string) ([]string, error)
	Ignored(path string, isDir bool) bool
}

// Options configures a Watcher.
type Options struct {
	Root      string
	Extension string

	// ScanExisting queues files already present under Root at startup.
	ScanExisting bool
}

// Watcher watches Root recursively and hands every new file ending in
// Extension to a HandlerFunc.
type Watcher struct {
	tree    Tree
	handler HandlerFunc
	logger  cfgpush.Logger
	opts    Options

	mu      sync.Mutex
	queue   []string
	pending map[string]bool // queued or in flight
	wake    chan struct{}
	ready   chan struct{}
}

// New creates a Watcher.
func New(tree Tree, handler HandlerFunc, logger cfgpush.Logger, opts Options) *Watcher {
	return &Watcher{
		tree:    tree,
		handler: handler,
		logger:  logger,
		opts:    opts,
		pending: make(map[string]bool),
		wake:    make(chan struct{}, 1),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. On cancellation it stops taking events,
// lets the in-flight handler observe ctx, and returns nil once it has.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.Root == "" {
		return fmt.Errorf("watch root is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.opts.Root, w.opts.ScanExisting); err != nil {
		return err
	}
	close(w.ready)
	w.logger.Info("watching", "root", w.opts.Root, "extension", w.opts.Extension)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.dispatch(ctx)
	}()

	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping", "queued", w.Len())
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			w.handleEvent(fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}

	p, err := w.tree.Resolve(ev.Name)
	if err != nil {
		// Gone already, or not a regular file.
		w.logger.Debug("skipping event", "path", ev.Name, "error", err)
		return
	}

	if p.IsDir() {
		// Files may land in a new directory before it is watched; scan it.
		if err := w.addTree(fw, p.String(), true); err != nil {
			w.logger.Warn("watching new directory", "path", p.String(), "error", err)
		}
		return
	}
	w.offer(p.String())
}

// addTree watches dir and every directory below it. With scan set, matching
// files already present are queued too.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string, scan bool) error {
	if w.tree.Ignored(dir, true) {
		return nil
	}

	dirs, err := w.tree.FindDirs(dir)
	if err != nil {
		return fmt.Errorf("listing directories under %s: %w", dir, err)
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
		w.logger.Debug("watching directory", "path", d)
	}

	if !scan {
		return nil
	}
	files, err := w.tree.FindFiles(dir, filepath.Ext(w.opts.Extension))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}
	for _, f := range files {
		w.offer(f)
	}
	return nil
}

// offer queues path unless it is filtered out or already pending.
func (w *Watcher) offer(path string) {
	if !strings.HasSuffix(path, w.opts.Extension) {
		return
	}
	if w.tree.Ignored(path, false) {
		w.logger.Debug("ignoring file", "path", path)
		return
	}

	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		w.logger.Debug("already pending", "path", path)
		return
	}
	w.pending[path] = true
	w.queue = append(w.queue, path)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	for {
		path, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}

		w.handler(ctx, path)

		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	path := w.queue[0]
	w.queue = w.queue[1:]
	return path, true
}

// Len returns the number of paths queued or in flight.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
