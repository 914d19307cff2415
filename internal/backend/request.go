package backend

import "sync"

// Input is one named input tensor attached to a request. The execution core
// never inspects Data; only shapes and byte sizes are interpreted upstream
// when building warm-up buffers.
type Input struct {
	Name string
	Dims []int64
	Data []byte
}

// Response carries per-request success or failure back to the submitter.
// Execution failures are always delivered here, never through control flow.
type Response struct {
	mu   sync.Mutex
	done bool
	err  error
}

// Complete marks the response finished. The first call wins; later calls
// are ignored so a batch-level failure cannot clobber a per-request result.
func (r *Response) Complete(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.err = err
}

// Done reports whether the response has been completed.
func (r *Response) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the recorded failure, or nil on success or while in flight.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Request is one in-flight inference request. Ownership transfers to the
// execution path when scheduled.
type Request struct {
	inputs []Input
	resp   *Response
}

// NewRequest builds a request over the given inputs.
func NewRequest(inputs ...Input) *Request {
	return &Request{inputs: inputs, resp: &Response{}}
}

// Inputs returns the request's input tensors.
func (r *Request) Inputs() []Input { return r.inputs }

// Response returns the request's response object.
func (r *Request) Response() *Response { return r.resp }

// Reset rearms the request with a fresh response so it can be executed
// again. Used by warm-up, which reuses its prebuilt requests across
// repeated iterations.
func (r *Request) Reset() { r.resp = &Response{} }
