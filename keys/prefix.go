package keys

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tarantool/go-storage-walker/hasher"
)

// StoragePrefix returns the prefix shared by all keys of a pallet storage
// item: twox128(pallet) followed by twox128(item).
func StoragePrefix(pallet, item string) (string, error) {
	switch {
	case pallet == "":
		return "", errInvalidName(pallet, "pallet name is empty")
	case item == "":
		return "", errInvalidName(item, "storage item name is empty")
	}

	h := hasher.NewTwox128Hasher()

	palletHash, err := h.Hash([]byte(pallet))
	if err != nil {
		return "", fmt.Errorf("failed to hash pallet name: %w", err)
	}

	itemHash, err := h.Hash([]byte(item))
	if err != nil {
		return "", fmt.Errorf("failed to hash item name: %w", err)
	}

	return hexutil.Encode(append(palletHash, itemHash...)), nil
}

// MapKey returns the full key of a storage map entry whose SCALE-encoded key
// is hashed with the given hasher.
func MapKey(pallet, item string, h hasher.Hasher, encodedKey []byte) (string, error) {
	prefix, err := StoragePrefix(pallet, item)
	if err != nil {
		return "", err
	}

	hashed, err := h.Hash(encodedKey)
	if err != nil {
		return "", fmt.Errorf("failed to hash map key with %s: %w", h.Name(), err)
	}

	return prefix + hexutil.Encode(hashed)[2:], nil
}
