package accounts_test

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarantool/go-storage-walker/accounts"
	"github.com/tarantool/go-storage-walker/kv"
)

const accountPrefix = "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9"

func u128(value uint64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out, value)

	return out
}

func accountValue(nonce uint32, free, reserved uint64, frozen ...uint64) string {
	raw := make([]byte, 16)
	binary.LittleEndian.PutUint32(raw[0:4], nonce)
	binary.LittleEndian.PutUint32(raw[8:12], 1)

	raw = append(raw, u128(free)...)
	raw = append(raw, u128(reserved)...)

	for _, value := range frozen {
		raw = append(raw, u128(value)...)
	}

	return "0x" + hex.EncodeToString(raw)
}

func accountKey(id byte) string {
	// blake2_128 hash of the account id is irrelevant for decoding.
	return accountPrefix + strings.Repeat("ab", 16) + strings.Repeat(hex.EncodeToString([]byte{id}), 20)
}

func TestDecodeAccountInfo(t *testing.T) {
	t.Parallel()

	info, err := accounts.DecodeAccountInfo(accountValue(7, 1000, 5, 3))
	require.NoError(t, err)

	assert.Equal(t, uint32(7), info.Nonce)
	assert.Equal(t, uint32(1), info.Providers)
	assert.Equal(t, uint64(1000), info.Free.Uint64())
	assert.Equal(t, uint64(5), info.Reserved.Uint64())
	require.NotNil(t, info.Frozen)
	assert.Equal(t, uint64(3), info.Frozen.Uint64())
	assert.Equal(t, uint64(1005), info.Total().Uint64())

	info, err = accounts.DecodeAccountInfo(accountValue(0, 1, 2))
	require.NoError(t, err)
	assert.Nil(t, info.Frozen)
}

func TestDecodeAccountInfo_Offsets(t *testing.T) {
	t.Parallel()

	value := accountValue(1, 0xdeadbeef, 0x1234)

	info, err := accounts.DecodeAccountInfo(value)
	require.NoError(t, err)

	// Free and reserved live at fixed hex offsets of the value.
	assert.Equal(t, hex.EncodeToString(u128(0xdeadbeef)), value[34:66])
	assert.Equal(t, hex.EncodeToString(u128(0x1234)), value[66:98])
	assert.Equal(t, uint64(0xdeadbeef), info.Free.Uint64())
	assert.Equal(t, uint64(0x1234), info.Reserved.Uint64())
}

func TestDecodeAccountInfo_Large(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 48)
	for i := 16; i < 32; i++ {
		raw[i] = 0xff
	}

	info, err := accounts.DecodeAccountInfo("0x" + hex.EncodeToString(raw))
	require.NoError(t, err)

	expected := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	assert.Equal(t, expected, info.Free)
	assert.True(t, info.Reserved.IsZero())
}

func TestDecodeAccountInfo_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"no prefix", "00"},
		{"not hex", "0xzz"},
		{"short", "0x" + strings.Repeat("00", 47)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := accounts.DecodeAccountInfo(tt.value)

			var decodeErr accounts.DecodeError

			require.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestAccountID(t *testing.T) {
	t.Parallel()

	id, err := accounts.AccountID(accountKey(0x5A))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("5a", 20), id)

	_, err = accounts.AccountID("0x1234")
	require.Error(t, err)

	_, err = accounts.AccountID(accountPrefix + strings.Repeat("zz", 20))
	require.Error(t, err)
}

func TestIssuance(t *testing.T) {
	t.Parallel()

	issuance := accounts.NewIssuance()

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			page := []kv.KeyValue{
				{Key: accountKey(byte(worker)), Value: accountValue(0, 100, 10)},
				{Key: accountKey(byte(worker + 100)), Value: accountValue(0, 1, 0)},
			}

			assert.NoError(t, issuance.Handle(context.Background(), page))
		}()
	}

	wg.Wait()

	totals := issuance.Totals()
	assert.Equal(t, int64(16), totals.Accounts)
	assert.Equal(t, uint64(808), totals.Free.Uint64())
	assert.Equal(t, uint64(80), totals.Reserved.Uint64())
	assert.Equal(t, uint64(888), totals.Issuance.Uint64())
	assert.Zero(t, totals.Invalid)
}

func TestIssuance_InvalidEntries(t *testing.T) {
	t.Parallel()

	issuance := accounts.NewIssuance()

	err := issuance.Handle(context.Background(), []kv.KeyValue{
		{Key: accountKey(1), Value: accountValue(0, 50, 0)},
		{Key: accountKey(2), Value: "0x00"},
		{Key: "0x12", Value: accountValue(0, 50, 0)},
		{Key: accountKey(3), Value: accountValue(0, 25, 5)},
	})

	var decodeErr accounts.DecodeError

	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, accountKey(2), decodeErr.Key)

	totals := issuance.Totals()
	assert.Equal(t, int64(2), totals.Accounts)
	assert.Equal(t, int64(2), totals.Invalid)
	assert.Equal(t, uint64(80), totals.Issuance.Uint64())
}

func TestDecodeBalance(t *testing.T) {
	t.Parallel()

	balance, err := accounts.DecodeBalance("0x" + hex.EncodeToString(u128(1_000_500)))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1_000_500), balance)

	high := make([]byte, 16)
	high[15] = 0x01

	balance, err = accounts.DecodeBalance("0x" + hex.EncodeToString(high))
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Lsh(uint256.NewInt(1), 120), balance)

	for _, value := range []string{"", "0x", "0x0102", "zz", "0x" + strings.Repeat("00", 17)} {
		_, err := accounts.DecodeBalance(value)

		var decodeErr accounts.DecodeError

		require.ErrorAs(t, err, &decodeErr, value)
	}
}

func TestTotals_Check(t *testing.T) {
	t.Parallel()

	issuance := accounts.NewIssuance()
	require.NoError(t, issuance.Handle(context.Background(), []kv.KeyValue{
		{Key: accountKey(1), Value: accountValue(0, 100, 20)},
		{Key: accountKey(2), Value: accountValue(0, 30, 0)},
	}))

	totals := issuance.Totals()
	require.NoError(t, totals.Check(uint256.NewInt(150)))

	err := totals.Check(uint256.NewInt(151))
	require.ErrorIs(t, err, accounts.ErrIssuanceMismatch)
	assert.Contains(t, err.Error(), "accounts hold 150, total issuance is 151")
}

func TestDecodeError_Error(t *testing.T) {
	t.Parallel()

	err := accounts.DecodeError{Key: "0xaa", Problem: "value is too short", Err: nil}
	assert.Equal(t, "invalid entry 0xaa: value is too short", err.Error())

	err = accounts.DecodeError{Key: "", Problem: "balance is not hex", Err: assert.AnError}
	assert.Equal(t, "invalid entry: balance is not hex: "+assert.AnError.Error(), err.Error())
}
