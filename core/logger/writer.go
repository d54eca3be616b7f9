package logger

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
)

const (
	defaultQueueSize = 256
	sinkBufferSize   = 64 * 1024

	anyLevel = slog.Level(math.MinInt)
)

// sink is one output of the writer. Lines below min are not written to it.
type sink struct {
	w   *bufio.Writer
	min slog.Level
}

func newSink(w io.Writer, floor slog.Level) sink {
	return sink{w: bufio.NewWriterSize(w, sinkBufferSize), min: floor}
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter fans formatted lines out to its sinks from one goroutine.
// Sinks are flushed whenever the queue drains.
type asyncWriter struct {
	queue   chan entry
	flushes chan chan error
	done    chan struct{}
	once    sync.Once
	sinks   []sink

	mu  sync.Mutex
	err error
}

func newAsyncWriter(queueSize int, sinks ...sink) *asyncWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &asyncWriter{
		queue:   make(chan entry, queueSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		sinks:   sinks,
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.setErr(w.flush())
				return
			}
			w.setErr(w.write(e))
		case ack := <-w.flushes:
			ack <- w.flush()
		}
	}
}

// Write queues line for every sink accepting level. It blocks while the
// queue is full and fails once any sink has failed.
func (w *asyncWriter) Write(level slog.Level, line []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.queue <- entry{level: level, line: bytes.Clone(line)}
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.firstErr()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) write(e entry) error {
	for _, s := range w.sinks {
		if e.level < s.min {
			continue
		}
		if _, err := s.w.Write(e.line); err != nil {
			return err
		}
	}
	if len(w.queue) == 0 {
		return w.flush()
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.w.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
