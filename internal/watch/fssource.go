package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
)

// FSSource watches directory trees with fsnotify.
type FSSource struct {
	w       *fsnotify.Watcher
	ignored []string
	events  chan Event
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewFSSource watches every directory under roots. Missing roots are skipped.
// Changes under any of the ignored directories (typically the output
// directory and its staging siblings) are dropped.
func NewFSSource(roots []string, ignored ...string) (*FSSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryWatcher, "failed to create file watcher").Build()
	}
	s := &FSSource{
		w:      w,
		events: make(chan Event),
		errs:   make(chan error),
		done:   make(chan struct{}),
	}
	for _, dir := range ignored {
		s.ignored = append(s.ignored, filepath.Clean(dir))
	}
	for _, root := range roots {
		if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
			slog.Debug("Watch root does not exist", logfields.Path(root))
			continue
		}
		s.addRecursive(root)
	}

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Events returns the filtered change stream. It is closed by Close.
func (s *FSSource) Events() <-chan Event { return s.events }

// Errors returns watcher errors as WatcherError values.
func (s *FSSource) Errors() <-chan error { return s.errs }

// Close stops watching and closes the event channels.
func (s *FSSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.w.Close()
		s.wg.Wait()
	})
	return err
}

func (s *FSSource) loop() {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errs)

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			out, keep := s.translate(ev)
			if !keep {
				continue
			}
			select {
			case s.events <- out:
			case <-s.done:
				return
			}
		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			werr := errors.WrapError(err, errors.CategoryWatcher, "file watcher error").Warning().Build()
			select {
			case s.errs <- werr:
			case <-s.done:
				return
			}
		}
	}
}

// translate filters ev and maps it to an Event. Newly created directories are
// added to the watch set.
func (s *FSSource) translate(ev fsnotify.Event) (Event, bool) {
	if shouldIgnoreEvent(ev.Name) || s.isIgnoredPath(ev.Name) {
		return Event{}, false
	}
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			s.addRecursive(ev.Name)
		}
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		// Chmod only.
		return Event{}, false
	}
	return Event{Path: ev.Name, Op: op}, true
}

func (s *FSSource) isIgnoredPath(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range s.ignored {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
		if strings.HasPrefix(path, dir+".staging-") || strings.HasPrefix(path, dir+".prev") {
			return true
		}
	}
	return false
}

func (s *FSSource) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if s.isIgnoredPath(path) {
			return filepath.SkipDir
		}
		if err := s.w.Add(path); err != nil {
			slog.Warn("Failed to watch directory", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent reports whether a path is a hidden, editor swap/backup or
// OS metadata file.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}
