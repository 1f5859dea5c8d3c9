package asyncqueue

// registry maps a dedup key to the single live entry for that key.
type registry[K comparable, V any] struct {
	entries map[K]V
}

func newRegistry[K comparable, V any]() *registry[K, V] {
	return &registry[K, V]{entries: make(map[K]V)}
}

func (r *registry[K, V]) lookup(key K) (V, bool) {
	v, ok := r.entries[key]
	return v, ok
}

func (r *registry[K, V]) register(key K, v V) {
	r.entries[key] = v
}

func (r *registry[K, V]) remove(key K) {
	delete(r.entries, key)
}

func (r *registry[K, V]) len() int {
	return len(r.entries)
}

// removeFunc deletes every entry for which fn returns true and reports how
// many were removed.
func (r *registry[K, V]) removeFunc(fn func(K, V) bool) int {
	n := 0
	for k, v := range r.entries {
		if fn(k, v) {
			delete(r.entries, k)
			n++
		}
	}
	return n
}
