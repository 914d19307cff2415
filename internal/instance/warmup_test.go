package instance

import (
	"bytes"
	"errors"
	"testing"

	"instanced/internal/backend"
	"instanced/internal/bufalloc"
	"instanced/pkg/types"
)

func warmupConfig(entry types.WarmupEntry) types.ModelConfig {
	return types.ModelConfig{
		Name:           "resnet",
		MaxBatchSize:   8,
		InstanceGroups: []types.InstanceGroup{{Kind: types.KindCPU}},
		Warmup:         []types.WarmupEntry{entry},
	}
}

func TestWarmupCountFloorsToOne(t *testing.T) {
	for _, count := range []int{0, 1} {
		cfg := warmupConfig(types.WarmupEntry{
			Name:   "sample",
			Count:  count,
			Inputs: []types.WarmupInput{{Name: "in", Dims: []int64{4}, ElementSize: 4, Source: types.WarmupZero}},
		})
		m, st := newStubModel(t, cfg, Options{})
		if err := m.SetInstances(); err != nil {
			t.Fatalf("count=%d: %v", count, err)
		}
		if got := len(st.Executions()); got != 1 {
			t.Fatalf("count=%d: expected exactly 1 warmup execution, got %d", count, got)
		}
		m.Close()
	}
}

func TestWarmupRepeatsCountTimes(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:   "sample",
		Count:  3,
		Inputs: []types.WarmupInput{{Name: "in", Dims: []int64{4}, ElementSize: 4, Source: types.WarmupZero}},
	})
	m, st := newStubModel(t, cfg, Options{})
	if err := m.SetInstances(); err != nil {
		t.Fatalf("set instances: %v", err)
	}
	defer m.Close()
	if got := len(st.Executions()); got != 3 {
		t.Fatalf("expected 3 warmup executions, got %d", got)
	}
}

func TestWarmupBuildsBatches(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:      "sample",
		BatchSize: 3,
		Inputs:    []types.WarmupInput{{Name: "in", Dims: []int64{2}, ElementSize: 4, Source: types.WarmupZero}},
	})
	m, st := newStubModel(t, cfg, Options{})
	if err := m.SetInstances(); err != nil {
		t.Fatalf("set instances: %v", err)
	}
	defer m.Close()
	exs := st.Executions()
	if len(exs) != 1 || len(exs[0].Requests) != 3 {
		t.Fatalf("expected one batch of 3 requests, got %+v", exs)
	}
}

func TestWarmupDataSources(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name: "sample",
		Inputs: []types.WarmupInput{
			{Name: "z", Dims: []int64{4}, ElementSize: 1, Source: types.WarmupZero},
			{Name: "p", Dims: []int64{4}, ElementSize: 1, Source: types.WarmupProvided, Data: "abcd"},
		},
	})
	m, st := newStubModel(t, cfg, Options{})
	if err := m.SetInstances(); err != nil {
		t.Fatalf("set instances: %v", err)
	}
	defer m.Close()

	ins := st.Executions()[0].Requests[0].Inputs()
	if len(ins) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(ins))
	}
	if !bytes.Equal(ins[0].Data, make([]byte, 4)) {
		t.Fatalf("zero input not zero-filled: %v", ins[0].Data)
	}
	if string(ins[1].Data) != "abcd" {
		t.Fatalf("provided input mismatch: %q", ins[1].Data)
	}
}

func TestWarmupProvidedSizeMismatch(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name: "sample",
		Inputs: []types.WarmupInput{
			{Name: "p", Dims: []int64{8}, ElementSize: 1, Source: types.WarmupProvided, Data: "abcd"},
		},
	})
	m, _ := newStubModel(t, cfg, Options{})
	err := m.SetInstances()
	if err == nil || !IsConfigError(err) {
		t.Fatalf("expected config error for short provided data, got %v", err)
	}
}

func TestWarmupBatchExceedsModelMax(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:      "sample",
		BatchSize: 64,
		Inputs:    []types.WarmupInput{{Name: "in", Dims: []int64{1}, ElementSize: 1, Source: types.WarmupZero}},
	})
	m, _ := newStubModel(t, cfg, Options{})
	err := m.SetInstances()
	if err == nil || !IsConfigError(err) {
		t.Fatalf("expected config error for oversized warmup batch, got %v", err)
	}
}

func TestWarmupInvalidShape(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:   "sample",
		Inputs: []types.WarmupInput{{Name: "in", Dims: []int64{0}, ElementSize: 4, Source: types.WarmupZero}},
	})
	m, _ := newStubModel(t, cfg, Options{})
	if err := m.SetInstances(); err == nil || !IsConfigError(err) {
		t.Fatalf("expected config error for non-positive dim, got %v", err)
	}
}

func TestWarmupAllocationFailure(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:   "sample",
		Inputs: []types.WarmupInput{{Name: "in", Dims: []int64{1024}, ElementSize: 4, Source: types.WarmupRandom}},
	})
	m, _ := newStubModel(t, cfg, Options{Allocator: bufalloc.Limited(16)})
	err := m.SetInstances()
	if err == nil || !IsResourceError(err) {
		t.Fatalf("expected resource error for failed allocation, got %v", err)
	}
	if m.ThreadCount() != 0 {
		t.Fatalf("allocation failure must tear the set down")
	}
}

func TestWarmupFailureAbortsInstance(t *testing.T) {
	cfg := warmupConfig(types.WarmupEntry{
		Name:   "sample",
		Inputs: []types.WarmupInput{{Name: "in", Dims: []int64{1}, ElementSize: 1, Source: types.WarmupZero}},
	})
	m, st := newStubModel(t, cfg, Options{})
	st.FailRequest = func(info backend.InstanceInfo, idx int, req *backend.Request) error {
		return errors.New("synthetic data rejected")
	}
	err := m.SetInstances()
	if err == nil || !IsLifecycleError(err) {
		t.Fatalf("expected lifecycle error from failed warmup, got %v", err)
	}
	if m.ThreadCount() != 0 || len(m.Instances()) != 0 {
		t.Fatalf("instance must never serve after a warmup failure")
	}
}
