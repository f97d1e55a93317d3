package substrate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	errChangeArity = errors.New("expected [key, value] pair")
	errNullHash    = errors.New("node returned no block hash")
)

// StorageChange is one [key, value] pair of a storage query. A nil Value
// means the key has no value at the queried block.
type StorageChange struct {
	Key   string
	Value *string
}

// UnmarshalJSON decodes the [key, value|null] pair and checks that both
// parts are 0x-prefixed hex.
func (c *StorageChange) UnmarshalJSON(data []byte) error {
	var pair []*string

	if err := json.Unmarshal(data, &pair); err != nil {
		return NewStorageChangeDecodingError("", err)
	}

	if len(pair) != 2 || pair[0] == nil { //nolint:mnd
		return NewStorageChangeDecodingError(string(data), errChangeArity)
	}

	if _, err := hexutil.Decode(*pair[0]); err != nil {
		return NewStorageChangeDecodingError(fmt.Sprintf("key %q", *pair[0]), err)
	}

	if pair[1] != nil {
		if _, err := hexutil.Decode(*pair[1]); err != nil {
			return NewStorageChangeDecodingError(fmt.Sprintf("value of %s", *pair[0]), err)
		}
	}

	c.Key = *pair[0]
	c.Value = pair[1]

	return nil
}

// MarshalJSON encodes the change as a [key, value|null] pair.
func (c StorageChange) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal([]*string{&c.Key, c.Value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage change: %w", err)
	}

	return data, nil
}

// StorageKeys is the result of state_getKeysPaged.
type StorageKeys []string

// UnmarshalJSON decodes the key list and checks that every key is
// 0x-prefixed hex, so a malformed key never becomes a page cursor.
func (k *StorageKeys) UnmarshalJSON(data []byte) error {
	var keys []string

	if err := json.Unmarshal(data, &keys); err != nil {
		return NewStorageKeysDecodingError("", err)
	}

	for i, key := range keys {
		if _, err := hexutil.Decode(key); err != nil {
			return NewStorageKeysDecodingError(fmt.Sprintf("key %d %q", i, key), err)
		}
	}

	*k = keys

	return nil
}

// BlockHash is the result of chain_getBlockHash and chain_getFinalizedHead.
type BlockHash string

// UnmarshalJSON decodes the hash and checks that it is 0x-prefixed hex.
// A null hash is rejected.
func (h *BlockHash) UnmarshalJSON(data []byte) error {
	var hash *string

	if err := json.Unmarshal(data, &hash); err != nil {
		return NewBlockHashDecodingError("", err)
	}

	if hash == nil {
		return NewBlockHashDecodingError("", errNullHash)
	}

	if _, err := hexutil.Decode(*hash); err != nil {
		return NewBlockHashDecodingError(fmt.Sprintf("%q", *hash), err)
	}

	*h = BlockHash(*hash)

	return nil
}

// StorageChangeSet is the result of state_queryStorageAt for one block.
type StorageChangeSet struct {
	Block   string          `json:"block"`
	Changes []StorageChange `json:"changes"`
}
