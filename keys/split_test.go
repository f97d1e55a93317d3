package keys_test

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarantool/go-storage-walker/keys"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	for _, prefix := range []string{"0x", "0xabc", "0x26aa394eea5630e07c48ae0c9558cef7"} {
		t.Run(prefix, func(t *testing.T) {
			t.Parallel()

			children := keys.Split(prefix)
			require.Len(t, children, keys.Fanout)

			seen := make(map[string]struct{}, len(children))
			for i, child := range children {
				assert.Equal(t, prefix+fmt.Sprintf("%02x", i), child)
				seen[child] = struct{}{}
			}

			assert.Len(t, seen, keys.Fanout, "children must be distinct")
		})
	}
}

func TestSplit_example(t *testing.T) {
	t.Parallel()

	children := keys.Split("0xabc")

	assert.Equal(t, "0xabc00", children[0])
	assert.Equal(t, "0xabc01", children[1])
	assert.Equal(t, "0xabc0a", children[10])
	assert.Equal(t, "0xabcff", children[255])

	for _, child := range children {
		assert.Equal(t, strings.ToLower(child), child)
	}
}

func TestSample(t *testing.T) {
	t.Parallel()

	t.Run("never", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, keys.Sample("0x00", 0, nil))
	})

	t.Run("always", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, keys.Split("0x00"), keys.Sample("0x00", 1, nil))
	})

	t.Run("seeded", func(t *testing.T) {
		t.Parallel()

		first := keys.Sample("0x00", 0.5, rand.New(rand.NewPCG(1, 2))) //nolint:gosec
		second := keys.Sample("0x00", 0.5, rand.New(rand.NewPCG(1, 2))) //nolint:gosec

		assert.Equal(t, first, second)
		assert.NotEmpty(t, first)
		assert.Less(t, len(first), keys.Fanout)

		all := keys.Split("0x00")
		for _, child := range first {
			assert.Contains(t, all, child)
		}
	})
}
