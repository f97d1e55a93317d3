package tkv

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

var errShortTuple = errors.New("tuple has fewer than 2 fields")

// tuple is a stored pair. Fields after the value, such as revisions kept by
// the space format, are skipped.
type tuple struct {
	Key   []byte
	Value []byte
}

func (t *tuple) DecodeMsgpack(decoder *msgpack.Decoder) error {
	length, err := decoder.DecodeArrayLen()
	if err != nil {
		return NewTupleDecodingError("", err)
	}

	if length < 2 { //nolint:mnd
		return NewTupleDecodingError("", errShortTuple)
	}

	if t.Key, err = decoder.DecodeBytes(); err != nil {
		return NewTupleDecodingError("key", err)
	}

	if t.Value, err = decoder.DecodeBytes(); err != nil {
		return NewTupleDecodingError("value", err)
	}

	for i := 2; i < length; i++ {
		if err := decoder.Skip(); err != nil {
			return NewTupleDecodingError("extra field", err)
		}
	}

	return nil
}
