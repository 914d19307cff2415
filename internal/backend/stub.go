package backend

import (
	"fmt"
	"sync"
)

// Stub is a no-compute backend used by default builds and tests. It records
// the order requests were executed in and completes every response.
type Stub struct {
	mu          sync.Mutex
	initialized []string
	executed    []Execution
	bindErr     error
	initErr     error
	// FailRequest, when set, is consulted per request; a non-nil return is
	// attached to that request's response.
	FailRequest func(info InstanceInfo, idx int, req *Request) error
	// FailExecute, when set, fails the whole Execute call.
	FailExecute func(info InstanceInfo) error
}

// Execution records one Execute call observed by the stub.
type Execution struct {
	Instance string
	Requests []*Request
}

// NewStub returns a stub backend that succeeds at everything.
func NewStub() *Stub { return &Stub{} }

// SetBindError makes subsequent BindDevice calls fail.
func (s *Stub) SetBindError(err error) {
	s.mu.Lock()
	s.bindErr = err
	s.mu.Unlock()
}

// SetInitError makes subsequent InstanceInitialize calls fail.
func (s *Stub) SetInitError(err error) {
	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) BindDevice(deviceID, nice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindErr
}

func (s *Stub) InstanceInitialize(info InstanceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initErr != nil {
		return s.initErr
	}
	s.initialized = append(s.initialized, info.Name)
	return nil
}

func (s *Stub) Execute(info InstanceInfo, reqs []*Request) error {
	s.mu.Lock()
	failReq := s.FailRequest
	failExec := s.FailExecute
	s.executed = append(s.executed, Execution{Instance: info.Name, Requests: reqs})
	s.mu.Unlock()
	if failExec != nil {
		if err := failExec(info); err != nil {
			return err
		}
	}
	for i, r := range reqs {
		if failReq != nil {
			if err := failReq(info, i, r); err != nil {
				r.Response().Complete(fmt.Errorf("stub execute %s: %w", info.Name, err))
				continue
			}
		}
		r.Response().Complete(nil)
	}
	return nil
}

func (s *Stub) InstanceFinalize(info InstanceInfo) error { return nil }

// Initialized returns the instance names initialized so far.
func (s *Stub) Initialized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.initialized))
	copy(out, s.initialized)
	return out
}

// Executions returns a copy of the recorded Execute calls in order.
func (s *Stub) Executions() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Execution, len(s.executed))
	copy(out, s.executed)
	return out
}
