// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/costlens/internal/analyzer"
	"github.com/jeranaias/costlens/internal/invoice"
)

// =============================================================================
// DIRECTORY WATCHER
// =============================================================================

// Watcher analyzes invoice files as they land in a directory. Events
// are debounced so a file still being written is only picked up once it
// settles.
type Watcher struct {
	analyzer *analyzer.Analyzer
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // File path -> last change time

	ctx    context.Context
	cancel context.CancelFunc

	// OnResult, when set, is invoked after each file is processed.
	// Called from the watcher goroutine.
	OnResult func(path string, analysis *analyzer.Analysis, err error)
}

// NewWatcher creates a watcher over dir. Call Watch to start it.
func NewWatcher(a *analyzer.Analyzer, dir string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		analyzer: a,
		dir:      dir,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for invoice files.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// processEvents collects file system events into the pending set.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleFileChange(event.Name)
			}

			// A removed or renamed file has nothing left to analyze.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.mu.Lock()
				delete(w.pending, event.Name)
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("pipeline: watch error: %v", err)
		}
	}
}

// handleFileChange queues a changed file for debounced processing.
func (w *Watcher) handleFileChange(path string) {
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processPending drains the pending set once files settle.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var toProcess []string
			for path, changeTime := range w.pending {
				if now.Sub(changeTime) >= w.debounce {
					toProcess = append(toProcess, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range toProcess {
				w.processFile(path)
			}
		}
	}
}

// processFile loads and analyzes a single invoice file.
func (w *Watcher) processFile(path string) {
	inv, err := invoice.LoadFile(path)
	if err != nil {
		log.Printf("pipeline: skipping %s: %v", filepath.Base(path), err)
		if w.OnResult != nil {
			w.OnResult(path, nil, err)
		}
		return
	}

	analysis, err := w.analyzer.Analyze(w.ctx, inv)
	if err != nil {
		log.Printf("pipeline: analysis failed for %s: %v", filepath.Base(path), err)
	}
	if w.OnResult != nil {
		w.OnResult(path, analysis, err)
	}
}
