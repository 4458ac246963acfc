package protocol

import "sync"

// table is a thread-safe transport ID → value mapping.
// A later put for the same key replaces the earlier value.
type table[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

func newTable[V any]() *table[V] {
	return &table[V]{entries: make(map[string]V)}
}

func (t *table[V]) put(key string, v V) {
	t.mu.Lock()
	t.entries[key] = v
	t.mu.Unlock()
}

func (t *table[V]) remove(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

func (t *table[V]) get(key string) (V, bool) {
	t.mu.RLock()
	v, ok := t.entries[key]
	t.mu.RUnlock()
	return v, ok
}

// values returns a snapshot of all values. Iterating the snapshot is safe
// while the table is modified or cleared.
func (t *table[V]) values() []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]V, 0, len(t.entries))
	for _, v := range t.entries {
		out = append(out, v)
	}
	return out
}

func (t *table[V]) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *table[V]) reset() {
	t.mu.Lock()
	clear(t.entries)
	t.mu.Unlock()
}
