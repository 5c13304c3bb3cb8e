// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package theme detects and watches the host's light/dark appearance for
// forge hosts that have no native theme notification.
package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/forge"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/termenv"
)

// Detect probes the terminal on stdout. An unspecified theme is treated as
// light.
func Detect() forge.Appearance {
	return DetectOutput(termenv.NewOutput(os.Stdout))
}

// DetectOutput probes o.
func DetectOutput(o *termenv.Output) forge.Appearance {
	if o.HasDarkBackground() {
		return forge.AppearanceDark
	}
	return forge.AppearanceLight
}

// ReadFile reads a theme file whose content is "dark", "light" or empty.
func ReadFile(path string) (forge.Appearance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return forge.AppearanceUnknown, err
	}
	a, err := forge.ParseAppearance(string(data))
	if err != nil {
		return forge.AppearanceUnknown, fmt.Errorf("theme: %s: %w", path, err)
	}
	return a, nil
}

// Watcher reports changes of a theme file.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by renaming are handled.
type Watcher struct {
	path   string
	notify func(forge.Appearance)
	fsw    *fsnotify.Watcher
	done   chan struct{}

	mu   sync.Mutex
	last forge.Appearance
}

// Watch starts watching path, which may start with "~". The current value
// is reported immediately when the file exists and names an appearance;
// afterwards fn runs on the watcher goroutine each time the value changes.
func Watch(path string, fn func(forge.Appearance)) (*Watcher, error) {
	if fn == nil {
		return nil, errors.New("theme: nil callback")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("theme: expand %q: %w", path, err)
	}
	expanded, err = filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("theme: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("theme: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(expanded)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("theme: watch %s: %w", filepath.Dir(expanded), err)
	}

	w := &Watcher{
		path:   expanded,
		notify: fn,
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	w.reload()
	go w.run()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Current returns the last appearance read from the file.
func (w *Watcher) Current() forge.Appearance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			forge.Logger().Warn("theme: watcher error", "path", w.path, "err", err)
		}
	}
}

// reload reads the file and reports a changed, known value.
func (w *Watcher) reload() {
	a, err := ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			forge.Logger().Warn("theme: read theme file", "path", w.path, "err", err)
		}
		return
	}
	if a == forge.AppearanceUnknown {
		return
	}
	w.mu.Lock()
	changed := a != w.last
	w.last = a
	w.mu.Unlock()
	if changed {
		forge.Logger().Debug("theme: appearance changed", "path", w.path, "appearance", a)
		w.notify(a)
	}
}
