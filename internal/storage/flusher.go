package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/verdantlabs/arbor/internal/checksum"
)

// Flusher serializes asynchronous writes to a Provider. Callers enqueue the
// latest payload per key; a single worker writes them in the background,
// skipping payloads identical to the last write of the same key.
type Flusher struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string][]byte
	written map[string]string // key -> checksum of last flushed payload
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewFlusher starts the flush worker.
func NewFlusher(provider Provider, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flusher{
		provider: provider,
		logger:   logger,
		pending:  map[string][]byte{},
		written:  map[string]string{},
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

// Enqueue schedules value to be written under key. Later enqueues for the
// same key supersede earlier ones that have not flushed yet.
func (f *Flusher) Enqueue(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.pending[key] = value
	// Send under the lock: Close flips closed before it closes wake, so a
	// send seen here cannot race the channel close.
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Flusher) run() {
	defer close(f.done)
	for range f.wake {
		f.drain()
	}
	f.drain()
}

func (f *Flusher) drain() {
	for {
		f.mu.Lock()
		if len(f.pending) == 0 {
			f.mu.Unlock()
			return
		}
		var key string
		var value []byte
		for k, v := range f.pending {
			key, value = k, v
			break
		}
		delete(f.pending, key)
		sum := checksum.Sum(value)
		if f.written[key] == sum {
			f.mu.Unlock()
			continue
		}
		f.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := f.provider.Set(ctx, key, value)
		cancel()
		if err != nil {
			f.logger.Warn("state flush failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		f.mu.Lock()
		f.written[key] = sum
		f.mu.Unlock()
	}
}

// Close flushes anything still pending and stops the worker.
func (f *Flusher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return
	}
	f.closed = true
	f.mu.Unlock()
	close(f.wake)
	<-f.done
}
