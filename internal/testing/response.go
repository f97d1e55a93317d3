package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tarantool/go-iproto"
	"github.com/tarantool/go-tarantool/v2"
	"github.com/vmihailenco/msgpack/v5"
)

var errNoResponses = errors.New("mock doer: list of responses is empty")

// MockResponse is a tarantool.Response carrying msgpack-encoded data.
type MockResponse struct {
	header tarantool.Header
	data   []byte
}

var _ tarantool.Response = &MockResponse{} //nolint:exhaustruct

// NewMockResponse encodes body into a response. For select requests body
// is the list of returned tuples.
func NewMockResponse(t T, body any) *MockResponse {
	t.Helper()

	buf := bytes.NewBuffer(nil)

	if err := msgpack.NewEncoder(buf).Encode(body); err != nil {
		t.Fatalf("failed to encode mock response: %s", err)
	}

	return &MockResponse{
		header: tarantool.Header{}, //nolint:exhaustruct
		data:   buf.Bytes(),
	}
}

func newMockResponseFrom(header tarantool.Header, body io.Reader) (*MockResponse, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock response: %w", err)
	}

	return &MockResponse{header: header, data: data}, nil
}

// Header returns the response header.
func (r *MockResponse) Header() tarantool.Header {
	return r.header
}

// Decode decodes the data as a list of values.
func (r *MockResponse) Decode() ([]any, error) {
	var out []any

	if err := msgpack.NewDecoder(bytes.NewReader(r.data)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode mock response: %w", err)
	}

	return out, nil
}

// DecodeTyped decodes the data into res.
func (r *MockResponse) DecodeTyped(res any) error {
	if err := msgpack.NewDecoder(bytes.NewReader(r.data)).Decode(res); err != nil {
		return fmt.Errorf("failed to decode mock response: %w", err)
	}

	return nil
}

// MockRequest is the request that futures of MockDoer are bound to.
type MockRequest struct{}

var _ tarantool.Request = &MockRequest{}

// NewMockRequest creates a MockRequest.
func NewMockRequest() *MockRequest {
	return &MockRequest{}
}

// Type implements tarantool.Request.
func (*MockRequest) Type() iproto.Type {
	return iproto.Type(0)
}

// Async implements tarantool.Request.
func (*MockRequest) Async() bool {
	return false
}

// Body implements tarantool.Request.
func (*MockRequest) Body(_ tarantool.SchemaResolver, _ *msgpack.Encoder) error {
	return nil
}

// Ctx implements tarantool.Request.
func (*MockRequest) Ctx() context.Context {
	return context.Background()
}

// Response implements tarantool.Request.
func (*MockRequest) Response(header tarantool.Header, body io.Reader) (tarantool.Response, error) {
	return newMockResponseFrom(header, body)
}
