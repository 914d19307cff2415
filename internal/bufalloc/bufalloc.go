// Package bufalloc provides the request-buffer allocation contract used by
// warm-up data construction. Only byte sizes are interpreted here; tensor
// contents are opaque to the caller.
package bufalloc

import (
	"fmt"
	"math/rand"
)

// Buffer is one allocated placeholder buffer.
type Buffer struct {
	data []byte
}

// Bytes returns the backing slice.
func (b *Buffer) Bytes() []byte { return b.data }

// ByteSize returns the allocated size.
func (b *Buffer) ByteSize() int64 { return int64(len(b.data)) }

// FillZero zeroes the buffer.
func (b *Buffer) FillZero() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// FillRandom fills the buffer with pseudo-random bytes.
func (b *Buffer) FillRandom(rng *rand.Rand) {
	rng.Read(b.data)
}

// Allocator hands out placeholder buffers. Implementations may enforce a
// budget and must fail rather than over-allocate.
type Allocator interface {
	Allocate(byteSize int64) (*Buffer, error)
}

type heapAllocator struct {
	limit int64 // 0 means unlimited
	used  int64
}

// Heap returns an allocator backed by ordinary heap memory with no budget.
func Heap() Allocator { return &heapAllocator{} }

// Limited returns a heap allocator that fails once more than limit bytes
// are outstanding. Used to exercise allocation-failure paths.
func Limited(limit int64) Allocator { return &heapAllocator{limit: limit} }

func (a *heapAllocator) Allocate(byteSize int64) (*Buffer, error) {
	if byteSize < 0 {
		return nil, fmt.Errorf("negative buffer size %d", byteSize)
	}
	if a.limit > 0 && a.used+byteSize > a.limit {
		return nil, fmt.Errorf("allocation of %d bytes exceeds budget of %d", byteSize, a.limit)
	}
	a.used += byteSize
	return &Buffer{data: make([]byte, byteSize)}, nil
}
