package testing

import (
	"context"
	"sort"
	"sync"

	"github.com/tarantool/go-storage-walker/kv"
)

// Recorder is a page handler that keeps every delivered page.
type Recorder struct {
	mu    sync.Mutex
	pages [][]kv.KeyValue
}

// Handle stores a copy of the page.
func (r *Recorder) Handle(_ context.Context, page []kv.KeyValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pages = append(r.pages, append([]kv.KeyValue(nil), page...))

	return nil
}

// Pages returns the delivered pages in delivery order.
func (r *Recorder) Pages() [][]kv.KeyValue {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]kv.KeyValue(nil), r.pages...)
}

// Entries returns all delivered entries in delivery order.
func (r *Recorder) Entries() []kv.KeyValue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []kv.KeyValue
	for _, page := range r.pages {
		out = append(out, page...)
	}

	return out
}

// SortedKeys returns all delivered keys, sorted.
func (r *Recorder) SortedKeys() []string {
	entries := r.Entries()

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Key)
	}

	sort.Strings(out)

	return out
}
