package pool

import "fmt"

// Table stores values of T in a fixed array indexed by SlotPool ids. The
// array never grows, so pointers returned by Get stay put until the slot is
// removed.
type Table[T any] struct {
	name  string
	pool  *SlotPool
	items []T
}

func NewTable[T any](name string, capacity uint32) *Table[T] {
	return &Table[T]{
		name:  name,
		pool:  New(capacity),
		items: make([]T, capacity+1),
	}
}

func (t *Table[T]) Insert(v T) (Handle, error) {
	idx := t.pool.Alloc()
	if idx == 0 {
		return Invalid, fmt.Errorf("%s: %w (capacity %d)", t.name, ErrExhausted, t.pool.Capacity())
	}
	t.items[idx] = v
	return Handle{ID: idx}, nil
}

// Get returns the slot for h, or nil when h does not resolve.
func (t *Table[T]) Get(h Handle) *T {
	if !t.pool.IsValid(h.ID) {
		return nil
	}
	return &t.items[h.ID]
}

func (t *Table[T]) Valid(h Handle) bool { return t.pool.IsValid(h.ID) }

// Remove zeroes and frees the slot. It reports false when h was not live.
func (t *Table[T]) Remove(h Handle) bool {
	if !t.pool.IsValid(h.ID) {
		return false
	}
	var zero T
	t.items[h.ID] = zero
	t.pool.Free(h.ID)
	return true
}

// Each visits live slots in index order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, *T) bool) {
	hw := t.pool.HighWater()
	for i := uint32(1); i < hw; i++ {
		if !t.pool.IsValid(i) {
			continue
		}
		if !fn(Handle{ID: i}, &t.items[i]) {
			return
		}
	}
}

func (t *Table[T]) Len() uint32 { return t.pool.Live() }

func (t *Table[T]) Pool() *SlotPool { return t.pool }

func (t *Table[T]) Name() string { return t.name }
