package logger

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// asyncWriter serializes log lines onto a buffered channel and drains them
// on a single background goroutine, so hot-path handlers never block on disk.
type asyncWriter struct {
	out    io.Writer
	lines  chan []byte
	done   chan struct{}
	closed chan struct{}

	mu      sync.Mutex
	dropped int
	stopped bool
}

const writerDrainTimeout = 2 * time.Second

func newAsyncWriter(outs []io.Writer, queueSize int) *asyncWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	var out io.Writer
	switch len(outs) {
	case 0:
		out = io.Discard
	case 1:
		out = outs[0]
	default:
		out = io.MultiWriter(outs...)
	}
	w := &asyncWriter{
		out:    out,
		lines:  make(chan []byte, queueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.closed)
	for {
		select {
		case line := <-w.lines:
			w.out.Write(line) //nolint:errcheck
		case <-w.done:
			for {
				select {
				case line := <-w.lines:
					w.out.Write(line) //nolint:errcheck
				default:
					return
				}
			}
		}
	}
}

// Write queues a line for the background writer. When the queue is full the
// line is dropped and counted instead of blocking the caller.
func (w *asyncWriter) Write(line []byte) error {
	cp := make([]byte, len(line))
	copy(cp, line)
	select {
	case w.lines <- cp:
		return nil
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return fmt.Errorf("logger: queue full, line dropped")
	}
}

// Dropped reports how many lines were discarded due to backpressure.
func (w *asyncWriter) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Flush waits until the queue has been handed to the underlying writer.
func (w *asyncWriter) Flush() error {
	deadline := time.Now().Add(writerDrainTimeout)
	for len(w.lines) > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("logger: flush timed out with %d lines queued", len(w.lines))
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Close drains queued lines and stops the background goroutine.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	select {
	case <-w.closed:
		return nil
	case <-time.After(writerDrainTimeout):
		return fmt.Errorf("logger: drain timed out")
	}
}
