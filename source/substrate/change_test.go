package substrate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarantool/go-storage-walker/source/substrate"
)

func TestStorageChangeSet_Unmarshal(t *testing.T) {
	t.Parallel()

	data := `[{
		"block": "0x01ab",
		"changes": [
			["0xaa01", "0x0102"],
			["0xaa02", null],
			["0xaa03", "0x"]
		]
	}]`

	var changeSets []substrate.StorageChangeSet

	require.NoError(t, json.Unmarshal([]byte(data), &changeSets))
	require.Len(t, changeSets, 1)
	assert.Equal(t, "0x01ab", changeSets[0].Block)

	changes := changeSets[0].Changes
	require.Len(t, changes, 3)

	assert.Equal(t, "0xaa01", changes[0].Key)
	require.NotNil(t, changes[0].Value)
	assert.Equal(t, "0x0102", *changes[0].Value)

	assert.Equal(t, "0xaa02", changes[1].Key)
	assert.Nil(t, changes[1].Value)

	require.NotNil(t, changes[2].Value)
	assert.Equal(t, "0x", *changes[2].Value)
}

func TestStorageChange_UnmarshalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"key": "0xaa"}`},
		{"single element", `["0xaa01"]`},
		{"three elements", `["0xaa01", "0x01", "0x02"]`},
		{"null key", `[null, "0x01"]`},
		{"key without prefix", `["aa01", "0x01"]`},
		{"odd value", `["0xaa01", "0x123"]`},
		{"non-hex value", `["0xaa01", "0xzz"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var change substrate.StorageChange

			err := json.Unmarshal([]byte(tt.data), &change)

			var decodingErr substrate.DecodingError

			require.ErrorAs(t, err, &decodingErr)
			assert.Equal(t, "storage change", decodingErr.ObjectType)
		})
	}
}

func TestStorageChange_Marshal(t *testing.T) {
	t.Parallel()

	value := "0x01"

	data, err := json.Marshal([]substrate.StorageChange{
		{Key: "0xaa01", Value: &value},
		{Key: "0xaa02", Value: nil},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[["0xaa01", "0x01"], ["0xaa02", null]]`, string(data))
}

func TestDecodingError_Error(t *testing.T) {
	t.Parallel()

	err := substrate.DecodingError{ObjectType: "storage change", Text: "key \"aa\"", Err: assert.AnError}
	assert.Equal(t, "failed to decode storage change, key \"aa\": "+assert.AnError.Error(), err.Error())

	err = substrate.DecodingError{ObjectType: "storage change", Text: "", Err: assert.AnError}
	assert.Equal(t, "failed to decode storage change: "+assert.AnError.Error(), err.Error())

	require.NoError(t, substrate.NewStorageChangeDecodingError("", nil))
}

func TestStorageKeys_Unmarshal(t *testing.T) {
	t.Parallel()

	var keys substrate.StorageKeys

	require.NoError(t, json.Unmarshal([]byte(`["0xaa01", "0xaa02", "0x"]`), &keys))
	assert.Equal(t, substrate.StorageKeys{"0xaa01", "0xaa02", "0x"}, keys)

	keys = nil
	require.NoError(t, json.Unmarshal([]byte(`[]`), &keys))
	assert.Empty(t, keys)

	tests := []struct {
		name string
		data string
	}{
		{"not an array", `"0xaa01"`},
		{"not hex", `["not-hex"]`},
		{"empty key", `["0xaa01", ""]`},
		{"odd key", `["0xaa1"]`},
		{"null key", `["0xaa01", null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var keys substrate.StorageKeys

			err := json.Unmarshal([]byte(tt.data), &keys)

			var decodingErr substrate.DecodingError

			require.ErrorAs(t, err, &decodingErr)
			assert.Equal(t, "storage keys", decodingErr.ObjectType)
			assert.Nil(t, keys)
		})
	}
}

func TestBlockHash_Unmarshal(t *testing.T) {
	t.Parallel()

	var hash substrate.BlockHash

	require.NoError(t, json.Unmarshal([]byte(`"0x01ab"`), &hash))
	assert.Equal(t, substrate.BlockHash("0x01ab"), hash)

	for _, data := range []string{`"garbage"`, `""`, `null`, `42`} {
		var hash substrate.BlockHash

		err := json.Unmarshal([]byte(data), &hash)

		var decodingErr substrate.DecodingError

		require.ErrorAs(t, err, &decodingErr, data)
		assert.Equal(t, "block hash", decodingErr.ObjectType)
	}
}
