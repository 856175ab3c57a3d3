package telemetry

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"payloadnav/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("telemetry: queue full, message dropped")
	ErrQueueClosed = errors.New("telemetry: queue closed")
)

// Queue decouples callers from a slow Sink. Send never blocks; one goroutine
// delivers queued messages in order.
type Queue struct {
	sink   Sink
	logger *slog.Logger
	ch     chan []byte

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewQueue(sink Sink, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{sink: sink, logger: logger, ch: make(chan []byte, size)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for p := range q.ch {
		if err := q.sink.Send(p); err != nil {
			q.failed.Add(1)
			metrics.Telemetry("error")
			q.logger.Debug("telemetry send failed", "err", err)
			continue
		}
		q.sent.Add(1)
		metrics.Telemetry("sent")
	}
}

// Send queues a copy of p.
func (q *Queue) Send(p []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	cp := append([]byte(nil), p...)
	select {
	case q.ch <- cp:
		return nil
	default:
		q.dropped.Add(1)
		metrics.Telemetry("dropped")
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for the queued ones to go out.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

type QueueStats struct {
	Sent, Dropped, Failed int64
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{Sent: q.sent.Load(), Dropped: q.dropped.Load(), Failed: q.failed.Load()}
}
