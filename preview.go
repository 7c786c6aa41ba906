package stencil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// RenderFunc builds the overlay for files. It is called again every time one
// of the files changes.
type RenderFunc func(files []string) (*Overlay, error)

// PreviewSource is a FrameSource that renders an overlay of a set of files
// and renders it again whenever one of them is written.
type PreviewSource struct {
	files  []string
	render RenderFunc
	// Events closer together than interval give one render.
	interval time.Duration

	watcher *fsnotify.Watcher
	watched map[string]bool

	revision uint32
	rendered bool

	logger logrus.FieldLogger
}

func NewPreviewSource(files []string, render RenderFunc, interval time.Duration) *PreviewSource {
	return &PreviewSource{
		files:    files,
		render:   render,
		interval: interval,
		watched:  make(map[string]bool),
		logger:   logrus.WithField("tag", "PreviewSource"),
	}
}

// watch starts watching the directories of the files. Editors often replace
// a file instead of writing it, which a watch on the file itself misses.
func (s *PreviewSource) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for _, fn := range s.files {
		abs, err := filepath.Abs(fn)
		if err != nil {
			watcher.Close()
			return err
		}
		s.watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("could not watch %s: %w", dir, err)
		}
	}

	s.watcher = watcher
	return nil
}

// Close stops watching the files.
func (s *PreviewSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// relevant reports whether ev changes the contents of a previewed file.
// Attribute changes alone are ignored.
func (s *PreviewSource) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return s.watched[filepath.Clean(ev.Name)]
}

// Read renders the first frame straight away and then waits for a file to
// change before rendering the next.
func (s *PreviewSource) Read(ctx context.Context) (Frame, error) {
	if !s.rendered {
		if err := s.watch(); err != nil {
			return Frame{}, err
		}
		s.rendered = true
		return s.frame()
	}

	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case ev, open := <-s.watcher.Events:
			if !open {
				return Frame{}, io.EOF
			}
			if !s.relevant(ev) {
				continue
			}
			s.logger.WithField("file", ev.Name).WithField("op", ev.Op.String()).Debug("changed")
			if settled == nil {
				settled = time.After(s.interval)
			}
		case err, open := <-s.watcher.Errors:
			if !open {
				return Frame{}, io.EOF
			}
			s.logger.WithError(err).Warn("watcher error")
		case <-settled:
			return s.frame()
		}
	}
}

func (s *PreviewSource) frame() (Frame, error) {
	overlay, err := s.render(s.files)
	if err != nil {
		s.logger.WithError(err).Warn("could not build overlay")
		return Frame{}, errIgnoreThisRow
	}

	canvas, err := overlay.Draw()
	if err != nil {
		s.logger.WithError(err).Warn("could not draw overlay")
		return Frame{}, errIgnoreThisRow
	}

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		s.logger.WithError(err).Warn("could not render png")
		return Frame{}, errIgnoreThisRow
	}

	s.revision++
	s.logger.WithField("revision", s.revision).Info("rendered")
	return Frame{
		Revision: s.revision,
		PNG:      buf.Bytes(),
		Metadata: NewMetadata(overlay, s.files, s.revision),
	}, nil
}
