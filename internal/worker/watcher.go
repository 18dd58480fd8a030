package worker

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// UploadWatcher watches the uploads directory and notifies when new payload
// files land, so the queue is polled promptly instead of waiting for the
// next timer tick. The periodic poll remains the source of truth; missed
// filesystem events only delay processing, never lose it.
type UploadWatcher struct {
	dir     string
	notify  func()
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  *slog.Logger
}

// NewUploadWatcher creates a watcher for the given uploads directory.
func NewUploadWatcher(dir string, notify func(), logger *slog.Logger) (*UploadWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UploadWatcher{
		dir:     dir,
		notify:  notify,
		watcher: fw,
		done:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start begins watching the uploads directory.
func (w *UploadWatcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *UploadWatcher) Stop() {
	w.watcher.Close()
	<-w.done
}

func (w *UploadWatcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.notify()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the poll timer covers the gap.
			w.logger.Warn("upload watch error", "error", err)
		}
	}
}
