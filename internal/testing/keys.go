package testing

import (
	"fmt"
	"sort"
)

// Putter stores a value under a key.
type Putter interface {
	Put(key, value string) string
}

// Fill stores n entries under prefix. Keys are prefix followed by a
// zero-padded hex counter, values are the counter itself. It returns the
// stored keys in ascending order.
func Fill(dst Putter, prefix string, n int) []string {
	keys := make([]string, 0, n)

	for i := range n {
		key := fmt.Sprintf("%s%08x", prefix, i)
		dst.Put(key, fmt.Sprintf("0x%08x", i))
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Spread stores perByte entries under every one of the 256 one-byte
// extensions of prefix and returns the total number of stored entries.
func Spread(dst Putter, prefix string, perByte int) int {
	for b := range 256 {
		Fill(dst, fmt.Sprintf("%s%02x", prefix, b), perByte)
	}

	return 256 * perByte
}
