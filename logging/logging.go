// Package logging builds the process logger. Records from every goroutine
// pass through a single queue so stdout and the run log file are written by
// one goroutine only.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const defaultQueueSize = 1024

// Options configure Setup.
type Options struct {
	Verbose   bool
	RunID     string
	FilePath  string // empty disables the run log file
	Stdout    io.Writer
	QueueSize int
}

// Setup builds the queued logger. The returned close func drains the queue
// and closes the log file; call it before exit.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	level := levelFor(opts.Verbose)

	handlers := []slog.Handler{consoleHandler(opts.Stdout, level)}
	var file *os.File
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	queue := NewQueueHandler(opts.QueueSize, level, handlers...)
	logger := slog.New(queue)
	if opts.RunID != "" {
		logger = logger.With(slog.String("run_id", opts.RunID))
	}

	closeFn := func() error {
		queue.Close()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

func levelFor(verbose bool) *slog.LevelVar {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	return level
}

func consoleHandler(w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

type entry struct {
	handlers []slog.Handler
	record   slog.Record
}

type queue struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entry
	done   chan struct{}
}

// QueueHandler hands records to a single writer goroutine that dispatches
// them to its target handlers in arrival order.
type QueueHandler struct {
	q        *queue
	level    slog.Leveler
	handlers []slog.Handler
}

// NewQueueHandler starts the writer goroutine. Close stops it.
func NewQueueHandler(size int, level slog.Leveler, handlers ...slog.Handler) *QueueHandler {
	q := &queue{
		ch:   make(chan entry, size),
		done: make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for e := range q.ch {
			dispatch(e)
		}
	}()
	if level == nil {
		level = slog.LevelInfo
	}
	return &QueueHandler{q: q, level: level, handlers: handlers}
}

func dispatch(e entry) {
	ctx := context.Background()
	for _, h := range e.handlers {
		if h.Enabled(ctx, e.record.Level) {
			_ = h.Handle(ctx, e.record)
		}
	}
}

func (h *QueueHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle enqueues r. After Close records are written inline.
func (h *QueueHandler) Handle(ctx context.Context, r slog.Record) error {
	e := entry{handlers: h.handlers, record: r.Clone()}
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		dispatch(e)
		return nil
	}
	select {
	case h.q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *QueueHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, t := range h.handlers {
		next[i] = t.WithAttrs(attrs)
	}
	return &QueueHandler{q: h.q, level: h.level, handlers: next}
}

func (h *QueueHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, t := range h.handlers {
		next[i] = t.WithGroup(name)
	}
	return &QueueHandler{q: h.q, level: h.level, handlers: next}
}

// Close drains queued records and stops the writer. It is idempotent.
func (h *QueueHandler) Close() {
	h.q.mu.Lock()
	if !h.q.closed {
		h.q.closed = true
		close(h.q.ch)
	}
	h.q.mu.Unlock()
	<-h.q.done
}
