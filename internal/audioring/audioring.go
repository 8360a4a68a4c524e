// Package audioring implements the fixed-capacity audio ring buffer shared
// by the dictation and command-recognizer audio substrates.
//
// This is a mutex-protected flat float32 array rather than the teacher's
// lock-free SPSC chunk ring (internal/audio/capture.go's callbackRing): the
// spec's own design note calls for "a fixed-size pre-allocated float32
// array" where "mutex protects three scalars (size, write_pos, and the
// backing buffer write)" and snapshots that copy rather than hand out
// references, so this package matches that data model precisely instead
// of porting the teacher's allocation strategy verbatim.
package audioring

import "sync"

// Buffer is a single-producer, multi-consumer ring of float32 samples.
// The producer is the audio capture callback; consumers are decoder ticks
// and flush paths, which call Snapshot.
type Buffer struct {
	mu       sync.Mutex
	samples  []float32
	size     int
	writePos int
}

// New allocates a ring with the given sample capacity (typically
// ~8 seconds worth of samples at the capture rate).
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{samples: make([]float32, capacity)}
}

// Append copies chunk into the ring, discarding the oldest samples on overflow.
func (b *Buffer) Append(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)
	if len(chunk) >= capacity {
		copy(b.samples, chunk[len(chunk)-capacity:])
		b.size = capacity
		b.writePos = 0
		return
	}

	first := capacity - b.writePos
	if first > len(chunk) {
		first = len(chunk)
	}
	copy(b.samples[b.writePos:b.writePos+first], chunk[:first])
	remaining := len(chunk) - first
	if remaining > 0 {
		copy(b.samples[:remaining], chunk[first:])
	}
	b.writePos = (b.writePos + len(chunk)) % capacity
	if b.size+len(chunk) > capacity {
		b.size = capacity
	} else {
		b.size += len(chunk)
	}
}

// Snapshot returns a copy of the most recent min(size, limit) samples in
// temporal order. limit ≤ 0 means "all buffered samples".
func (b *Buffer) Snapshot(limit int) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size <= 0 {
		return nil
	}
	n := b.size
	if limit > 0 && limit < n {
		n = limit
	}
	if n <= 0 {
		return nil
	}

	capacity := len(b.samples)
	start := ((b.writePos-n)%capacity + capacity) % capacity
	out := make([]float32, n)
	if start+n <= capacity {
		copy(out, b.samples[start:start+n])
		return out
	}
	firstLen := capacity - start
	copy(out, b.samples[start:])
	copy(out[firstLen:], b.samples[:n-firstLen])
	return out
}

// Clear resets the ring to empty without reallocating the backing array.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = 0
	b.writePos = 0
}

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Window returns a snapshot of the tail of the ring, zero-padded at the
// tail by padSamples. The command recognizer's finalize path uses it to
// give the model trailing context; the dictation decoder's flush paths
// read an unpadded Snapshot instead.
func Window(b *Buffer, windowSamples, padSamples int) []float32 {
	snap := b.Snapshot(windowSamples)
	if len(snap) == 0 || padSamples <= 0 {
		return snap
	}
	out := make([]float32, len(snap)+padSamples)
	copy(out, snap)
	return out
}
