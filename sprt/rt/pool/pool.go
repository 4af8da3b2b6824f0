package pool

import (
	"errors"
	"fmt"
)

var (
	ErrExhausted     = errors.New("pool exhausted")
	ErrInvalidHandle = errors.New("invalid handle")
)

// Handle is a lookup key into a SlotPool-backed table. ID 0 is reserved and
// never handed out.
type Handle struct {
	ID uint32
}

var Invalid = Handle{}

func (h Handle) IsNil() bool { return h.ID == 0 }

func (h Handle) String() string {
	if h.ID == 0 {
		return "#invalid"
	}
	return fmt.Sprintf("#%d", h.ID)
}

// SlotPool hands out indices in [1, capacity]. Freed indices go back on a
// LIFO free queue; the queue is seeded so a fresh pool allocates 1, 2, 3...
type SlotPool struct {
	size           uint32
	lastIndexPlus1 uint32
	queueTop       uint32
	freeQueue      []uint32
	allocated      []bool
	debug          bool
}

func New(capacity uint32) *SlotPool {
	p := &SlotPool{
		size:      capacity + 1,
		freeQueue: make([]uint32, capacity),
		allocated: make([]bool, capacity+1),
	}
	p.Reset()
	return p
}

// Reset frees every slot.
func (p *SlotPool) Reset() {
	capacity := p.size - 1
	for i := uint32(0); i < capacity; i++ {
		p.freeQueue[i] = capacity - i
	}
	clear(p.allocated)
	p.queueTop = capacity
	p.lastIndexPlus1 = 0
}

// SetDebug enables the free-queue scan on Free.
func (p *SlotPool) SetDebug(enabled bool) { p.debug = enabled }

// Alloc returns a free index, or 0 when the pool is exhausted.
func (p *SlotPool) Alloc() uint32 {
	if p.queueTop == 0 {
		return 0
	}
	p.queueTop--
	idx := p.freeQueue[p.queueTop]
	p.allocated[idx] = true
	if idx+1 > p.lastIndexPlus1 {
		p.lastIndexPlus1 = idx + 1
	}
	return idx
}

// Free returns idx to the pool. Freeing a slot that is not allocated panics
// in debug mode and is ignored otherwise.
func (p *SlotPool) Free(idx uint32) {
	if p.debug {
		p.checkNotFree(idx)
	}
	if idx == 0 || idx >= p.size || !p.allocated[idx] {
		return
	}
	p.allocated[idx] = false
	p.freeQueue[p.queueTop] = idx
	p.queueTop++
	if idx+1 == p.lastIndexPlus1 {
		p.lastIndexPlus1--
	}
}

func (p *SlotPool) checkNotFree(idx uint32) {
	if idx == 0 || idx >= p.size {
		panic(fmt.Sprintf("pool: free of out-of-range index %d (size %d)", idx, p.size))
	}
	for i := uint32(0); i < p.queueTop; i++ {
		if p.freeQueue[i] == idx {
			panic(fmt.Sprintf("pool: double free of index %d", idx))
		}
	}
}

func (p *SlotPool) IsValid(idx uint32) bool {
	return idx != 0 && idx < p.size && p.allocated[idx]
}

// HighWater is one past the highest index handed out and not yet lowered by a
// Free of the top slot. Iterating [1, HighWater()) visits every live slot.
func (p *SlotPool) HighWater() uint32 { return p.lastIndexPlus1 }

func (p *SlotPool) Live() uint32 { return p.size - 1 - p.queueTop }

func (p *SlotPool) Capacity() uint32 { return p.size - 1 }
