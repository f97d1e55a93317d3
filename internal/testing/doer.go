package testing

import (
	"bytes"
	"sync"

	"github.com/tarantool/go-tarantool/v2"
)

type doerResponse struct {
	resp *MockResponse
	err  error
}

// MockDoer is a tarantool.Doer that answers requests with prepared
// responses, in order.
type MockDoer struct {
	mu sync.Mutex
	// Requests holds every received request, in order.
	Requests  []tarantool.Request
	responses []doerResponse
	t         T
}

var _ tarantool.Doer = &MockDoer{} //nolint:exhaustruct

// NewMockDoer creates a MockDoer answering with the given responses.
// Each response is either a *MockResponse or an error.
func NewMockDoer(t T, responses ...any) *MockDoer {
	t.Helper()

	mockDoer := &MockDoer{
		mu:        sync.Mutex{},
		t:         t,
		Requests:  []tarantool.Request{},
		responses: []doerResponse{},
	}

	for _, response := range responses {
		doerResp := doerResponse{
			resp: nil,
			err:  nil,
		}

		switch resp := response.(type) {
		case *MockResponse:
			doerResp.resp = resp
		case error:
			doerResp.err = resp
		default:
			t.Fatalf("unsupported type: %T", response)
		}

		mockDoer.responses = append(mockDoer.responses, doerResp)
	}

	return mockDoer
}

// Do records the request and returns a future holding the next prepared
// response.
func (d *MockDoer) Do(req tarantool.Request) *tarantool.Future {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Requests = append(d.Requests, req)

	fut := tarantool.NewFuture(NewMockRequest())

	if len(d.responses) == 0 {
		fut.SetError(errNoResponses)
		return fut
	}

	response := d.responses[0]
	d.responses = d.responses[1:]

	if response.err != nil {
		fut.SetError(response.err)
	} else {
		_ = fut.SetResponse(response.resp.header, bytes.NewBuffer(response.resp.data))
	}

	return fut
}

// Remaining returns the number of responses not consumed yet.
func (d *MockDoer) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.responses)
}
