package filewatch

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/lapviewer-go/log"
)

// Watch calls onChange whenever one of files is written. It returns when ctx
// is done or the watcher fails to start. Empty names are ignored.
//
//nolint:funlen,gocognit,cyclop // by design
func Watch(
	ctx context.Context,
	l *log.Logger,
	onChange func(name string),
	files ...string,
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Error("could not create fsnotify watcher", log.ErrorField(err))
		return err
	}
	defer watcher.Close()
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := watcher.Add(f); err != nil {
			l.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			l.Info("context done, stopping file watch")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				l.Info("watcher events channel closed, stopping file watch")
				return nil
			}
			l.Debug("change detected",
				log.String("file", event.Name), log.Any("event", event))
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create),
				event.Has(fsnotify.Chmod):
				onChange(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				// editors replace the file, watch the new one
				if err := watcher.Add(event.Name); err == nil {
					onChange(event.Name)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				l.Info("watcher errors channel closed, stopping file watch")
				return nil
			}
			l.Error("watcher error", log.ErrorField(err))
		}
	}
}
