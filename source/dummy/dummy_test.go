package dummy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source/dummy"
)

func TestSource_Keys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := dummy.New()

	src.Put("0xaa03", "0x03")
	src.Put("0xaa01", "0x01")
	src.Put("0xAA02", "0x02")
	src.Put("0xbb01", "0xff")

	keys, err := src.Keys(ctx, "0xaa", 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa01", "0xaa02", "0xaa03"}, keys)

	keys, err = src.Keys(ctx, "0xaa", 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa01", "0xaa02"}, keys)

	keys, err = src.Keys(ctx, "0xaa", 2, "0xaa02", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa03"}, keys)

	keys, err = src.Keys(ctx, "0xcc", 2, "", "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keysCalls, valuesCalls := src.Calls()
	assert.Equal(t, int64(4), keysCalls)
	assert.Equal(t, int64(0), valuesCalls)
}

func TestSource_Snapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := dummy.New()

	src.Put("0x01", "0xaa")
	before := src.Put("0x02", "0xbb")

	head, err := src.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, head)

	src.Put("0x01", "0xcc")
	src.Delete("0x02")
	src.Put("0x03", "0xdd")

	keys, err := src.Keys(ctx, "0x", 10, "", before)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x01", "0x02"}, keys)

	values, err := src.Values(ctx, keys, before)
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{{Key: "0x01", Value: "0xaa"}, {Key: "0x02", Value: "0xbb"}}, values)

	keys, err = src.Keys(ctx, "0x", 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0x01", "0x03"}, keys)

	values, err = src.Values(ctx, []string{"0x01", "0x02", "0x03"}, "")
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{{Key: "0x01", Value: "0xcc"}, {Key: "0x03", Value: "0xdd"}}, values)
}

func TestSource_negative(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := dummy.New()
	src.Put("0x01", "0xaa")

	_, err := src.Keys(ctx, "0x", 0, "", "")
	require.ErrorIs(t, err, dummy.ErrInvalidCount)

	_, err = src.Keys(ctx, "0x", 1, "", "42")
	require.ErrorIs(t, err, dummy.ErrUnknownPosition)

	_, err = src.Values(ctx, []string{"0x01"}, "not-a-number")
	require.ErrorIs(t, err, dummy.ErrUnknownPosition)

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = src.Keys(canceled, "0x", 1, "", "")
	require.ErrorIs(t, err, context.Canceled)

	_, err = src.Head(canceled)
	require.ErrorIs(t, err, context.Canceled)
}
