// Package kv provides key-value data structures shared by sources and walkers.
// It defines the core KeyValue type delivered to page handlers.
package kv

// KeyValue represents a storage entry read at a single chain position.
// Both fields are 0x-prefixed hex strings.
type KeyValue struct {
	// Key is the hex representation of the storage key.
	Key string
	// Value is the hex representation of the stored value.
	// It is empty when the source reported no value for the key.
	Value string
}

// Keys returns the keys of the page in their original order.
func Keys(page []KeyValue) []string {
	out := make([]string, 0, len(page))
	for _, entry := range page {
		out = append(out, entry.Key)
	}

	return out
}

// Align orders values by the given key list. Keys that are missing in values
// produce an entry with an empty Value, duplicates in values are ignored.
func Align(keys []string, values []KeyValue) []KeyValue {
	byKey := make(map[string]string, len(values))
	for _, entry := range values {
		if _, ok := byKey[entry.Key]; !ok {
			byKey[entry.Key] = entry.Value
		}
	}

	out := make([]KeyValue, 0, len(keys))
	for _, key := range keys {
		out = append(out, KeyValue{Key: key, Value: byKey[key]})
	}

	return out
}
