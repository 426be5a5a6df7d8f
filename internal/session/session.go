// Package session keeps a graph in sync with the file being worked on. The
// active file is redrawn when it is activated and whenever it is written.
package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"callgraph/internal/errors"
	"callgraph/internal/logger"
)

// DrawFunc redraws the graph for file. It should return promptly once ctx is
// cancelled.
type DrawFunc func(ctx context.Context, file string) error

// Options configures a Session.
type Options struct {
	// Debounce collapses bursts of writes into one redraw. Defaults to 300ms.
	Debounce time.Duration
	Logger   *zap.SugaredLogger
}

// Session redraws the active file. A new draw cancels the one in flight.
type Session struct {
	draw     DrawFunc
	debounce time.Duration
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	active     string
	watchedDir string
	watcher    *fsnotify.Watcher
	timer      *time.Timer
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	drawMu     sync.Mutex
	drawCancel context.CancelFunc
	runMu      sync.Mutex
}

// New creates a stopped session.
func New(draw DrawFunc, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("session")
	}
	return &Session{draw: draw, debounce: opts.Debounce, logger: log}
}

// Start begins watching. The watch ends when ctx is cancelled or Stop is
// called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return errors.New("session already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	s.watcher = watcher
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	if s.active != "" {
		if err := s.watchLocked(filepath.Dir(s.active)); err != nil {
			s.logger.Warnw("failed to watch active file", logger.FieldFile, s.active, logger.FieldError, err)
		}
	}

	go s.watchLoop(s.ctx, watcher, s.done)
	return nil
}

// Active returns the file currently followed, or "" if none.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activate makes file the active file and draws it.
func (s *Session) Activate(file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", file)
	}

	s.mu.Lock()
	s.active = abs
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.watcher != nil {
		if err := s.watchLocked(filepath.Dir(abs)); err != nil {
			s.logger.Warnw("failed to watch active file", logger.FieldFile, abs, logger.FieldError, err)
		}
	}
	parent := s.ctx
	s.mu.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	s.logger.Infow("file activated", logger.FieldFile, abs)
	return s.redraw(parent, abs)
}

// Stop ends watching and cancels any draw in flight. It is safe to call
// more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	watcher, done, cancel := s.watcher, s.done, s.cancel
	s.watcher = nil
	s.watchedDir = ""
	s.ctx = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.drawMu.Lock()
	if s.drawCancel != nil {
		s.drawCancel()
	}
	s.drawMu.Unlock()

	if watcher == nil {
		return nil
	}
	cancel()
	err := watcher.Close()
	<-done
	return err
}

// watchLocked moves the watch to dir. Directories are watched rather than
// files so editors that save by rename are still seen.
func (s *Session) watchLocked(dir string) error {
	if s.watchedDir == dir {
		return nil
	}
	if s.watchedDir != "" {
		_ = s.watcher.Remove(s.watchedDir)
		s.watchedDir = ""
	}
	if err := s.watcher.Add(dir); err != nil {
		return err
	}
	s.watchedDir = dir
	return nil
}

func (s *Session) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != s.Active() {
				continue
			}
			s.logger.Debugw("active file changed", logger.FieldFile, event.Name, "op", event.Op.String())
			s.scheduleRedraw()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warnw("file watcher error", logger.FieldError, err)
		}
	}
}

func (s *Session) scheduleRedraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	ctx := s.ctx
	if ctx == nil {
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		file := s.Active()
		if file == "" || ctx.Err() != nil {
			return
		}
		if err := s.redraw(ctx, file); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warnw("redraw failed", logger.FieldFile, file, logger.FieldError, err)
		}
	})
}

// redraw cancels the draw in flight, waits for it to unwind and runs a new
// one.
func (s *Session) redraw(parent context.Context, file string) error {
	s.drawMu.Lock()
	if s.drawCancel != nil {
		s.drawCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.drawCancel = cancel
	s.drawMu.Unlock()
	defer cancel()

	start := time.Now()
	err := s.serialized(ctx, file)
	if err != nil {
		return err
	}
	s.logger.Debugw("redraw finished", logger.FieldFile, file, logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

// serialized lets a cancelled draw finish before the next one starts.
func (s *Session) serialized(ctx context.Context, file string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.draw(ctx, file)
}
