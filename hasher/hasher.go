// Package hasher provides the storage key hashers used to build map keys.
package hasher

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// ErrDataIsNil is returned if the passed data is nil.
var ErrDataIsNil = errors.New("data is nil")

const (
	twox64Size    = 8
	blake2128Size = 16
)

// Hasher is the interface that storage hashers must implement.
// Implementations are stateless and safe for concurrent use.
type Hasher interface {
	Name() string
	Hash(data []byte) ([]byte, error)
}

func twox64(data []byte, seed uint64) []byte {
	digest := xxhash.NewWithSeed(seed)
	_, _ = digest.Write(data)

	return binary.LittleEndian.AppendUint64(make([]byte, 0, twox64Size), digest.Sum64())
}

type twox128Hasher struct{}

// NewTwox128Hasher creates a hasher producing two concatenated 64-bit xxhash
// digests seeded with 0 and 1, each in little-endian order.
func NewTwox128Hasher() Hasher {
	return twox128Hasher{}
}

// Name implements Hasher interface.
func (twox128Hasher) Name() string {
	return "twox128"
}

// Hash implements Hasher interface.
func (twox128Hasher) Hash(data []byte) ([]byte, error) {
	if data == nil {
		return nil, ErrDataIsNil
	}

	return append(twox64(data, 0), twox64(data, 1)...), nil
}

type twox64ConcatHasher struct{}

// NewTwox64ConcatHasher creates a hasher that prefixes the data with its
// 64-bit xxhash digest.
func NewTwox64ConcatHasher() Hasher {
	return twox64ConcatHasher{}
}

// Name implements Hasher interface.
func (twox64ConcatHasher) Name() string {
	return "twox64concat"
}

// Hash implements Hasher interface.
func (twox64ConcatHasher) Hash(data []byte) ([]byte, error) {
	if data == nil {
		return nil, ErrDataIsNil
	}

	return append(twox64(data, 0), data...), nil
}

type blake2128ConcatHasher struct{}

// NewBlake2128ConcatHasher creates a hasher that prefixes the data with its
// 128-bit blake2b digest.
func NewBlake2128ConcatHasher() Hasher {
	return blake2128ConcatHasher{}
}

// Name implements Hasher interface.
func (blake2128ConcatHasher) Name() string {
	return "blake2_128concat"
}

// Hash implements Hasher interface.
func (blake2128ConcatHasher) Hash(data []byte) ([]byte, error) {
	if data == nil {
		return nil, ErrDataIsNil
	}

	digest, err := blake2b.New(blake2128Size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blake2b digest: %w", err)
	}

	n, err := digest.Write(data)
	if n < len(data) || err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	return append(digest.Sum(nil), data...), nil
}

type identityHasher struct{}

// NewIdentityHasher creates a hasher that returns a copy of the data.
func NewIdentityHasher() Hasher {
	return identityHasher{}
}

// Name implements Hasher interface.
func (identityHasher) Name() string {
	return "identity"
}

// Hash implements Hasher interface.
func (identityHasher) Hash(data []byte) ([]byte, error) {
	if data == nil {
		return nil, ErrDataIsNil
	}

	return append([]byte{}, data...), nil
}

// ByName returns a hasher by its name.
func ByName(name string) (Hasher, bool) {
	switch name {
	case "twox128":
		return NewTwox128Hasher(), true
	case "twox64concat":
		return NewTwox64ConcatHasher(), true
	case "blake2_128concat":
		return NewBlake2128ConcatHasher(), true
	case "identity":
		return NewIdentityHasher(), true
	default:
		return nil, false
	}
}
