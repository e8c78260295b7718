// Package history keeps a rolling window of recent simulation frames.
//
// A background worker follows the engine's frame subscription and appends
// every frame it receives; the oldest frames are evicted once the window is
// full. Readers use it to draw orbital trails.
package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

// Source provides frames to follow.
type Source interface {
	Subscribe() (<-chan *sim.Frame, func())
}

// Ring is a fixed-capacity buffer of frames. Safe for concurrent use.
type Ring struct {
	mu     sync.RWMutex
	frames []*sim.Frame
	next   int
	full   bool

	pushed    atomic.Int64
	evictions atomic.Int64
	logger    *slog.Logger
}

// NewRing creates a ring holding up to size frames (minimum 1).
func NewRing(size int, logger *slog.Logger) *Ring {
	if size < 1 {
		size = 1
	}
	logger.Info("frame history initialized", "size", size)
	return &Ring{frames: make([]*sim.Frame, size), logger: logger}
}

// Push appends a frame, evicting the oldest when full.
func (r *Ring) Push(f *sim.Frame) {
	r.mu.Lock()
	if r.full {
		r.evictions.Add(1)
	}
	r.frames[r.next] = f
	r.next = (r.next + 1) % len(r.frames)
	if r.next == 0 {
		r.full = true
	}
	n := r.lenLocked()
	r.mu.Unlock()

	r.pushed.Add(1)
	metrics.SetHistoryFrames(n)
}

// Recent returns up to count frames, oldest first, ending with the newest.
func (r *Ring) Recent(count int) []*sim.Frame {
	if count <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.lenLocked()
	if count > n {
		count = n
	}
	out := make([]*sim.Frame, count)
	size := len(r.frames)
	for i := 0; i < count; i++ {
		idx := (r.next - count + i + size) % size
		out[i] = r.frames[idx]
	}
	return out
}

// Len returns the number of frames held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *Ring) lenLocked() int {
	if r.full {
		return len(r.frames)
	}
	return r.next
}

// Stats reports ring counters.
type Stats struct {
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Pushed    int64 `json:"pushed"`
	Evictions int64 `json:"evictions"`
}

// Stats returns a snapshot of the ring counters.
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	size, capacity := r.lenLocked(), len(r.frames)
	r.mu.RUnlock()
	return Stats{
		Size:      size,
		Capacity:  capacity,
		Pushed:    r.pushed.Load(),
		Evictions: r.evictions.Load(),
	}
}

// Follow subscribes to src and records every frame until ctx is done.
func (r *Ring) Follow(ctx context.Context, src Source) {
	frames, cancel := src.Subscribe()
	defer cancel()

	r.logger.Debug("frame history following engine")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("frame history stopped", "pushed", r.pushed.Load())
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			r.Push(f)
		}
	}
}
