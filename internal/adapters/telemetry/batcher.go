// Package telemetry provides tracing adapters and streams operation output to the console.
package telemetry

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the default buffer size (4KB) if not specified.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is the default flush interval (50ms) if not specified.
	DefaultTimeLimit = 50 * time.Millisecond
)

// ErrBatcherClosed is returned when writing to a closed LineBatcher.
var ErrBatcherClosed = errors.New("line batcher is closed")

// LineBatcher buffers writes and hands complete lines to onFlush once the
// buffer passes sizeLimit or timeLimit elapses. A trailing partial line is
// held back until more data arrives or Close is called.
type LineBatcher struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func(lines []string)

	mu     sync.Mutex
	buffer *bytes.Buffer
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewLineBatcher returns a LineBatcher. Call Close to stop the background ticker.
func NewLineBatcher(sizeLimit int, timeLimit time.Duration, onFlush func(lines []string)) *LineBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	lb := &LineBatcher{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
		buffer:    new(bytes.Buffer),
		stopCh:    make(chan struct{}),
	}

	lb.ticker = time.NewTicker(timeLimit)
	go lb.run()

	return lb
}

// Write appends p to the buffer.
func (lb *LineBatcher) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return 0, ErrBatcherClosed
	}

	n, err = lb.buffer.Write(p)
	if err != nil {
		return n, err
	}

	if lb.buffer.Len() >= lb.sizeLimit {
		lb.flushLocked(false)
		lb.ticker.Reset(lb.timeLimit)
	}

	return n, nil
}

// Flush emits every complete buffered line.
func (lb *LineBatcher) Flush() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.closed {
		return
	}
	lb.flushLocked(false)
}

// Close stops the background flusher and emits everything left, including a partial line.
func (lb *LineBatcher) Close() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return nil
	}

	lb.closed = true
	close(lb.stopCh)
	lb.flushLocked(true)
	return nil
}

func (lb *LineBatcher) run() {
	for {
		select {
		case <-lb.ticker.C:
			lb.Flush()
		case <-lb.stopCh:
			lb.ticker.Stop()
			return
		}
	}
}

// flushLocked must be called with mu held.
func (lb *LineBatcher) flushLocked(final bool) {
	data := lb.buffer.Bytes()
	if len(data) == 0 {
		return
	}

	cut := bytes.LastIndexByte(data, '\n') + 1
	if final || (cut == 0 && len(data) >= lb.sizeLimit) {
		// A single line longer than the limit is emitted as is.
		cut = len(data)
	}
	if cut == 0 {
		return
	}

	chunk := string(data[:cut])
	lb.buffer.Next(cut)

	lines := strings.Split(strings.TrimSuffix(chunk, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	// onFlush runs under the lock to keep line order.
	if lb.onFlush != nil {
		lb.onFlush(lines)
	}
}
