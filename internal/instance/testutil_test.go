package instance

import (
	"testing"
	"time"

	"instanced/internal/backend"
	"instanced/pkg/types"
)

// newStubModel builds a model over a fresh stub backend and fails the test
// on constructor errors.
func newStubModel(t *testing.T, cfg types.ModelConfig, opts Options) (*Model, *backend.Stub) {
	t.Helper()
	st := backend.NewStub()
	m, err := NewModel(cfg, st, opts)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m, st
}

// cpuModelConfig is a single CPU group with count replicas and no warmup.
func cpuModelConfig(name string, count int) types.ModelConfig {
	return types.ModelConfig{
		Name:           name,
		InstanceGroups: []types.InstanceGroup{{Kind: types.KindCPU, Count: count}},
	}
}

// newEmptyRequest builds a one-request batch with no inputs.
func newEmptyRequest() []*backend.Request {
	return []*backend.Request{backend.NewRequest()}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// scheduleAndWait schedules one batch and blocks until its completion
// callback fires.
func scheduleAndWait(t *testing.T, inst *Instance, reqs ...*backend.Request) {
	t.Helper()
	done := make(chan struct{})
	inst.Schedule(reqs, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("batch completion callback never fired")
	}
}
