package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

type flushRequest chan error

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter moves log I/O off the calling goroutine. One loop owns the
// buffered sinks; lines are flushed as they arrive so a crash loses little.
type asyncWriter struct {
	lines   chan []byte
	flushes chan flushRequest
	done    chan struct{}

	sinks []*bufio.Writer

	// gate orders sends on lines before closing it.
	gate   sync.RWMutex
	closed bool

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, 256),
		flushes: make(chan flushRequest),
		done:    make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.flush())
				return
			}
			w.record(w.emit(line))
		case req := <-w.flushes:
			// Lines queued before Flush was called are written first.
			for n := len(w.lines); n > 0; n-- {
				line, ok := <-w.lines
				if !ok {
					break
				}
				w.record(w.emit(line))
			}
			req <- w.flush()
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than
// dropping the line.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failure(); err != nil {
		return err
	}
	req := make(flushRequest, 1)
	select {
	case w.flushes <- req:
		return <-req
	case <-w.done:
		return w.failure()
	}
}

// Close drains the queue and returns the first write error, if any.
func (w *asyncWriter) Close() error {
	w.gate.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.gate.Unlock()
	<-w.done
	return w.failure()
}

func (w *asyncWriter) emit(line []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
