package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, domain.UsageRecord) {}

// UsageWriter persists one usage record.
type UsageWriter interface {
	InsertUsageLog(ctx context.Context, rec domain.UsageRecord) error
}

// RecorderOption configures a StoreRecorder.
type RecorderOption func(*StoreRecorder)

// WithQueueSize sets how many records may wait for the writer.
func WithQueueSize(n int) RecorderOption {
	return func(r *StoreRecorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithWriteTimeout bounds each write.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *StoreRecorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// StoreRecorder hands records to a background writer. Writes are decoupled
// from the request lifecycle, so a client disconnect does not drop the record.
// When the queue is full the record is dropped and logged.
type StoreRecorder struct {
	writer       UsageWriter
	logger       *slog.Logger
	queueSize    int
	writeTimeout time.Duration

	queue   chan domain.UsageRecord
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewStoreRecorder starts the background writer.
func NewStoreRecorder(writer UsageWriter, logger *slog.Logger, opts ...RecorderOption) *StoreRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &StoreRecorder{
		writer:       writer,
		logger:       logger,
		queueSize:    defaultQueueSize,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan domain.UsageRecord, r.queueSize)
	go r.run()
	return r
}

// Record enqueues rec without blocking.
func (r *StoreRecorder) Record(_ context.Context, rec domain.UsageRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(rec, "recorder closed")
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.drop(rec, "queue full")
	}
}

func (r *StoreRecorder) drop(rec domain.UsageRecord, reason string) {
	r.dropped.Add(1)
	r.logger.Warn("usage record dropped",
		slog.String("reason", reason),
		slog.String("operation", string(rec.Operation)),
		slog.String("provider", string(rec.Provider)),
	)
}

func (r *StoreRecorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := r.writer.InsertUsageLog(ctx, rec)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.logger.Error("failed to write usage log",
				slog.String("operation", string(rec.Operation)),
				slog.String("provider", string(rec.Provider)),
				slog.Int64("user_id", rec.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close stops accepting records and waits for queued ones to be written, or
// for ctx to expire.
func (r *StoreRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many records were discarded without a write attempt.
func (r *StoreRecorder) Dropped() int64 { return r.dropped.Load() }

// Failed returns how many writes returned an error.
func (r *StoreRecorder) Failed() int64 { return r.failed.Load() }
