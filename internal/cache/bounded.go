// Package cache provides a small capacity-capped map that evicts in insertion
// order. It is not safe for concurrent use; callers that share one across
// goroutines guard it themselves.
package cache

// Bounded keeps at most Limit entries. Inserting beyond the limit drops the
// oldest inserted entries first; reads never change the order, so this is a
// capacity cap rather than an LRU.
type Bounded[K comparable, V any] struct {
	limit int
	order []K
	items map[K]V
}

// NewBounded returns an empty cache holding at most limit entries. A limit of
// zero or less retains nothing.
func NewBounded[K comparable, V any](limit int) *Bounded[K, V] {
	if limit < 0 {
		limit = 0
	}
	return &Bounded[K, V]{
		limit: limit,
		items: make(map[K]V),
	}
}

// Limit reports the capacity.
func (b *Bounded[K, V]) Limit() int { return b.limit }

// Len reports the number of retained entries.
func (b *Bounded[K, V]) Len() int { return len(b.items) }

// Get returns the value stored under key without affecting eviction order.
func (b *Bounded[K, V]) Get(key K) (V, bool) {
	v, ok := b.items[key]
	return v, ok
}

// Contains reports whether key is retained.
func (b *Bounded[K, V]) Contains(key K) bool {
	_, ok := b.items[key]
	return ok
}

// Evicted is an entry dropped by Insert.
type Evicted[K comparable, V any] struct {
	Key   K
	Value V
}

// Insert stores value under key as the newest entry and returns whatever had
// to be dropped to stay within the limit. Re-inserting an existing key
// replaces its value and makes it the newest entry.
func (b *Bounded[K, V]) Insert(key K, value V) []Evicted[K, V] {
	if _, ok := b.items[key]; ok {
		b.removeOrder(key)
	}
	b.items[key] = value
	b.order = append(b.order, key)

	var dropped []Evicted[K, V]
	for len(b.order) > b.limit {
		oldest := b.order[0]
		b.order = b.order[1:]
		dropped = append(dropped, Evicted[K, V]{Key: oldest, Value: b.items[oldest]})
		delete(b.items, oldest)
	}
	return dropped
}

// Promote removes key from the cache and hands its value back to the caller.
func (b *Bounded[K, V]) Promote(key K) (V, bool) {
	v, ok := b.items[key]
	if !ok {
		return v, false
	}
	delete(b.items, key)
	b.removeOrder(key)
	return v, true
}

// Remove drops key if present.
func (b *Bounded[K, V]) Remove(key K) bool {
	_, ok := b.Promote(key)
	return ok
}

// Keys returns the retained keys, oldest first.
func (b *Bounded[K, V]) Keys() []K {
	out := make([]K, len(b.order))
	copy(out, b.order)
	return out
}

func (b *Bounded[K, V]) removeOrder(key K) {
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
