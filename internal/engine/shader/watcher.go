package shader

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/logger"
)

// Watcher flags a shader reload when files in a directory change.
// The reload itself must happen on the render thread; poll Pending there.
type Watcher struct {
	fw      *fsnotify.Watcher
	pending atomic.Bool
	done    chan struct{}
	log     *zap.Logger
}

// Watch starts watching dir.
func Watch(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating shader watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &Watcher{fw: fw, done: make(chan struct{}), log: logger.Named("shader")}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.log.Debug("shader source changed", zap.String("file", ev.Name))
				w.pending.Store(true)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("shader watcher error", zap.Error(err))
		}
	}
}

// Pending reports whether sources changed since the last call.
func (w *Watcher) Pending() bool {
	return w.pending.Swap(false)
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
