package etcd_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	etcdclient "go.etcd.io/etcd/client/v3"

	walker "github.com/tarantool/go-storage-walker"
	walkTesting "github.com/tarantool/go-storage-walker/internal/testing"
	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/limiter"
	etcdsource "github.com/tarantool/go-storage-walker/source/etcd"
)

var errFutureRevision = errors.New("required revision is a future revision")

type fakeVersion struct {
	rev   int64
	value []byte
}

// fakeKV is a multi-version in-memory implementation of the Client
// interface. It understands the subset of range options used by the source.
type fakeKV struct {
	mu      sync.Mutex
	rev     int64
	history map[string][]fakeVersion
	limit   int64
	ops     []etcdclient.Op
}

func newFakeKV(limit int64) *fakeKV {
	return &fakeKV{ //nolint:exhaustruct
		history: map[string][]fakeVersion{},
		limit:   limit,
	}
}

// Put implements walkTesting.Putter for hex keys and values.
func (f *fakeKV) Put(key, value string) string {
	rawKey, err := keys.ToBytes(key)
	if err != nil {
		panic(err)
	}

	rawValue, err := keys.ToBytes(value)
	if err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rev++
	f.history[string(rawKey)] = append(f.history[string(rawKey)], fakeVersion{rev: f.rev, value: rawValue})

	return fmt.Sprint(f.rev)
}

func (f *fakeKV) lastOp() etcdclient.Op {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ops[len(f.ops)-1]
}

func inRange(key, start, end string) bool {
	switch end {
	case "":
		return key == start
	case "\x00":
		return key >= start
	default:
		return key >= start && key < end
	}
}

func (f *fakeKV) Get(ctx context.Context, key string, opts ...etcdclient.OpOption) (*etcdclient.GetResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	op := etcdclient.OpGet(key, opts...)
	f.ops = append(f.ops, op)

	rev := op.Rev()
	if rev == 0 {
		rev = f.rev
	}

	if rev > f.rev {
		return nil, errFutureRevision
	}

	var matched []string

	for candidate, versions := range f.history {
		if !inRange(candidate, string(op.KeyBytes()), string(op.RangeBytes())) {
			continue
		}

		if versions[0].rev <= rev {
			matched = append(matched, candidate)
		}
	}

	sort.Strings(matched)

	resp := &etcdclient.GetResponse{ //nolint:exhaustruct
		Header: &etcdserverpb.ResponseHeader{Revision: f.rev}, //nolint:exhaustruct
		Count:  int64(len(matched)),
	}

	if op.IsCountOnly() {
		return resp, nil
	}

	if f.limit > 0 && int64(len(matched)) > f.limit {
		matched = matched[:f.limit]
		resp.More = true
	}

	for _, candidate := range matched {
		item := &mvccpb.KeyValue{Key: []byte(candidate)} //nolint:exhaustruct

		if !op.IsKeysOnly() {
			versions := f.history[candidate]
			for i := len(versions) - 1; i >= 0; i-- {
				if versions[i].rev <= rev {
					item.Value = versions[i].value
					break
				}
			}
		}

		resp.Kvs = append(resp.Kvs, item)
	}

	return resp, nil
}

func TestSource_Keys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeKV(2)
	src := etcdsource.New(client)

	client.Put("0xaa01", "0x01")
	client.Put("0xaa02", "0x02")
	position := client.Put("0xaa03", "0x03")
	client.Put("0xaa04", "0x04")
	client.Put("0xab01", "0x05")

	got, err := src.Keys(ctx, "0xaa", 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa01", "0xaa02"}, got)
	assert.True(t, client.lastOp().IsKeysOnly())

	got, err = src.Keys(ctx, "0xaa", 2, "0xaa02", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa03", "0xaa04"}, got)

	got, err = src.Keys(ctx, "0xaa", 2, "0xaa02", position)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa03"}, got)
	assert.Equal(t, int64(3), client.lastOp().Rev())

	got, err = src.Keys(ctx, "0xaa", 2, "0xaa04", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = src.Keys(ctx, "0x", 2, "0xaa04", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xab01"}, got)
}

func TestSource_Keys_Invalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := etcdsource.New(newFakeKV(0))

	_, err := src.Keys(ctx, "0xa", 10, "", "")

	var keyErr keys.InvalidKeyError

	require.ErrorAs(t, err, &keyErr)

	_, err = src.Keys(ctx, "0xaa", 10, "zz", "")
	require.ErrorAs(t, err, &keyErr)

	_, err = src.Keys(ctx, "0xaa", 10, "", "0xabcdef")
	require.ErrorIs(t, err, etcdsource.ErrInvalidPosition)

	_, err = src.Keys(ctx, "0xaa", 10, "", "10")
	require.ErrorIs(t, err, errFutureRevision)
}

func TestSource_Values(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeKV(0)
	src := etcdsource.New(client)

	client.Put("0xaa01", "0x0101")
	client.Put("0xaa02", "0x0202")
	position := client.Put("0xaa03", "0x0303")
	client.Put("0xaa03", "0x3333")

	values, err := src.Values(ctx, []string{"0xaa03", "0xaa01", "0xaa09"}, "")
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{
		{Key: "0xaa01", Value: "0x0101"},
		{Key: "0xaa03", Value: "0x3333"},
	}, values)
	assert.Equal(t, []byte{0xaa, 0x01}, client.lastOp().KeyBytes())
	assert.Equal(t, []byte{0xaa, 0x09, 0x00}, client.lastOp().RangeBytes())

	values, err = src.Values(ctx, []string{"0xaa03"}, position)
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{{Key: "0xaa03", Value: "0x0303"}}, values)

	values, err = src.Values(ctx, nil, "")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSource_Head(t *testing.T) {
	t.Parallel()

	client := newFakeKV(0)
	client.Put("0xaa01", "0x01")
	client.Put("0xaa02", "0x02")

	head, err := etcdsource.New(client).Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", head)
	assert.True(t, client.lastOp().IsCountOnly())
}

func TestSource_Walk(t *testing.T) {
	t.Parallel()

	const pageSize = 7

	client := newFakeKV(pageSize)
	total := walkTesting.Spread(client, "0x26aa", 3)
	walkTesting.Fill(client, "0x26ab", 5)

	w, err := walker.New(etcdsource.New(client), walker.WithPageSize(pageSize))
	require.NoError(t, err)

	var recorder walkTesting.Recorder

	stats, err := w.WalkAll(context.Background(), limiter.NewPool(4), "0x26aa", "", recorder.Handle)
	require.NoError(t, err)
	assert.Equal(t, total, stats.Keys)
	assert.Len(t, recorder.SortedKeys(), total)

	for _, entry := range recorder.Entries() {
		assert.NotEmpty(t, entry.Value)
	}
}

func TestSource_Close(t *testing.T) {
	t.Parallel()

	require.NoError(t, etcdsource.New(newFakeKV(0)).Close())
}
