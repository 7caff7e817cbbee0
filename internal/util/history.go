package util

import "sync"

// History keeps the most recent entries of an append-only stream. Each
// entry gets a sequence number so readers can poll for what they missed.
// Safe for concurrent use.
type History[T any] struct {
	mu   sync.RWMutex
	slot []T
	next uint64
}

func NewHistory[T any](keep int) *History[T] {
	if keep < 1 {
		keep = 1
	}
	return &History[T]{slot: make([]T, keep)}
}

// Append stores v, evicting the oldest entry when full, and returns its
// sequence number. Numbering starts at 1.
func (h *History[T]) Append(v T) uint64 {
	h.mu.Lock()
	h.slot[h.next%uint64(len(h.slot))] = v
	h.next++
	seq := h.next
	h.mu.Unlock()
	return seq
}

// oldest is the sequence number of the first retained entry.
func (h *History[T]) oldest() uint64 {
	if keep := uint64(len(h.slot)); h.next > keep {
		return h.next - keep + 1
	}
	return 1
}

// Since returns the retained entries numbered after seq, oldest first, and
// the number to pass on the next call. Entries already evicted are skipped.
func (h *History[T]) Since(seq uint64) ([]T, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	from := seq + 1
	if lo := h.oldest(); from < lo {
		from = lo
	}
	if from > h.next {
		return nil, h.next
	}
	out := make([]T, 0, h.next-from+1)
	for s := from; s <= h.next; s++ {
		out = append(out, h.slot[(s-1)%uint64(len(h.slot))])
	}
	return out, h.next
}

// Entries returns everything retained, oldest first.
func (h *History[T]) Entries() []T {
	out, _ := h.Since(0)
	return out
}

func (h *History[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.next == 0 {
		return 0
	}
	return int(h.next - h.oldest() + 1)
}
