package keys

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ToBytes decodes a 0x-prefixed hex key or prefix. Byte-keyed backends can
// only address whole bytes, so odd-length input is rejected.
func ToBytes(key string) ([]byte, error) {
	raw, err := hexutil.Decode(key)
	if err != nil {
		return nil, errInvalidKey(key, err.Error())
	}

	return raw, nil
}

// FromBytes encodes raw key bytes as a 0x-prefixed lowercase hex string.
func FromBytes(raw []byte) string {
	return hexutil.Encode(raw)
}
