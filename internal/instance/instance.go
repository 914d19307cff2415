package instance

import (
	"sync"
	"sync/atomic"
	"time"

	"instanced/internal/backend"
	"instanced/pkg/types"
)

// cpuDeviceID is the sentinel device id for non-accelerator instances.
// Device ids are meaningful only for GPU-kind instances.
const cpuDeviceID = 0

// SecondaryDevice is an auxiliary device used by a multi-device instance
// beyond its primary device id. Immutable for the instance's lifetime.
type SecondaryDevice struct {
	Kind string
	ID   int64
}

// workItem is one scheduled batch: the requests plus the completion
// callback signalling that the batch slot is free again.
type workItem struct {
	requests     []*backend.Request
	onCompletion func()
}

// Instance is one runnable, device-bound replica of a loaded model. The
// owning Model constructs and destroys instances within its own lifetime,
// so the back-reference held here is non-owning and always valid.
type Instance struct {
	model *Model

	name              string
	signature         *Signature
	kind              types.InstanceGroupKind
	deviceID          int
	hostPolicyName    string
	hostPolicy        types.HostPolicy
	hostPolicyMessage []byte
	profiles          []string
	passive           bool
	secondaryDevices  []SecondaryDevice
	reporter          *MetricReporter

	// thread is shared with other instances grouped onto the same device;
	// nil for passive instances, which are never scheduled.
	thread *backendThread

	queueMu sync.Mutex
	queue   []workItem
	// queueClosed is set by the serving thread when it shuts down; from
	// then on Schedule fails batches immediately instead of enqueueing.
	queueClosed bool

	stateMu sync.Mutex
	state   any

	warmupSamples []warmupSample
	initialized   atomic.Bool
	ready         atomic.Bool
}

func (i *Instance) Name() string                        { return i.name }
func (i *Instance) Kind() types.InstanceGroupKind       { return i.kind }
func (i *Instance) DeviceID() int                       { return i.deviceID }
func (i *Instance) IsPassive() bool                     { return i.passive }
func (i *Instance) Profiles() []string                  { return i.profiles }
func (i *Instance) SecondaryDevices() []SecondaryDevice { return i.secondaryDevices }
func (i *Instance) HostPolicyName() string              { return i.hostPolicyName }
func (i *Instance) HostPolicy() types.HostPolicy        { return i.hostPolicy }

// HostPolicyMessage returns the policy serialized as a JSON blob, built
// once at construction.
func (i *Instance) HostPolicyMessage() []byte { return i.hostPolicyMessage }

// GetSignature returns the signature used to group this instance.
func (i *Instance) GetSignature() *Signature { return i.signature }

// Model returns the owning model.
func (i *Instance) Model() *Model { return i.model }

// MetricReporter returns the instance's reporter, or nil when metrics are
// disabled.
func (i *Instance) MetricReporter() *MetricReporter { return i.reporter }

// State returns the opaque backend-defined state.
func (i *Instance) State() any {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()
	return i.state
}

// SetState attaches opaque backend-defined state. Callers aliasing state
// across instances coordinate any concurrent writes themselves.
func (i *Instance) SetState(state any) {
	i.stateMu.Lock()
	i.state = state
	i.stateMu.Unlock()
}

func (i *Instance) info() backend.InstanceInfo {
	return backend.InstanceInfo{
		Model:      i.model.name,
		Name:       i.name,
		Kind:       i.kind,
		DeviceID:   i.deviceID,
		HostPolicy: i.hostPolicy,
		Config:     i.model.backendConfig,
	}
}

// Initialize performs backend setup for this instance and constructs its
// warm-up samples. An instance that fails to initialize must never be
// scheduled.
func (i *Instance) Initialize() error {
	if err := i.model.backend.InstanceInitialize(i.info()); err != nil {
		return newResourceError("initialize %s: %v", i.name, err)
	}
	i.initialized.Store(true)
	if err := i.buildWarmupSamples(); err != nil {
		return err
	}
	i.model.publisher.Publish(Event{Name: "instance_initialized", Model: i.model.name, Instance: i.name,
		Fields: map[string]any{"device": i.deviceID}})
	return nil
}

// WarmUp executes each configured sample count times, synchronously, in
// configured order. Fail-fast: a model that cannot run its own synthetic
// data is not ready, so the first failure aborts the whole pass.
func (i *Instance) WarmUp() error {
	if len(i.warmupSamples) == 0 {
		return nil
	}
	start := time.Now()
	i.model.publisher.Publish(Event{Name: "warmup_start", Model: i.model.name, Instance: i.name})
	for si := range i.warmupSamples {
		s := &i.warmupSamples[si]
		i.model.logger.Debug().Str("instance", i.name).Str("sample", s.name).Int("count", s.count).Msg("warmup sample")
		for n := 0; n < s.count; n++ {
			for _, r := range s.requests {
				r.Reset()
			}
			i.Execute(s.requests)
			for _, r := range s.requests {
				if err := r.Response().Err(); err != nil {
					return newLifecycleError("warmup sample %s failed on %s: %v", s.name, i.name, err)
				}
			}
		}
	}
	// Samples and their placeholder buffers are no longer needed.
	i.warmupSamples = nil
	i.reporter.observeWarmup(time.Since(start))
	i.model.publisher.Publish(Event{Name: "warmup_done", Model: i.model.name, Instance: i.name,
		Fields: map[string]any{"dur": time.Since(start).String()}})
	return nil
}

// Schedule hands ownership of requests plus a completion callback to the
// instance's execution thread. Non-blocking: the batch is enqueued and
// executed FIFO relative to other batches scheduled to this instance.
// onCompletion fires exactly once when the batch slot is free again;
// per-request outcomes travel through each request's own response.
func (i *Instance) Schedule(requests []*backend.Request, onCompletion func()) {
	t := i.thread
	if i.passive || t == nil {
		i.failBatch(requests, onCompletion, newLifecycleError("instance %s is passive and cannot be scheduled", i.name))
		return
	}
	i.queueMu.Lock()
	if i.queueClosed {
		i.queueMu.Unlock()
		i.failBatch(requests, onCompletion, newLifecycleError("backend thread %s is stopped", t.name))
		return
	}
	i.queue = append(i.queue, workItem{requests: requests, onCompletion: onCompletion})
	i.queueMu.Unlock()
	i.reporter.queueDelta(1)
	t.notify()
}

func (i *Instance) dequeue() (workItem, bool) {
	i.queueMu.Lock()
	defer i.queueMu.Unlock()
	if len(i.queue) == 0 {
		return workItem{}, false
	}
	item := i.queue[0]
	i.queue = i.queue[1:]
	return item, true
}

// failPending closes the queue and fails every batch still waiting on it,
// so each response completes and each callback fires exactly once. Called
// by the serving thread after its loop exits; a Schedule racing the
// shutdown either lands in the queue (and is failed here) or observes the
// closed queue and is failed immediately.
func (i *Instance) failPending(err error) {
	i.queueMu.Lock()
	pending := i.queue
	i.queue = nil
	i.queueClosed = true
	i.queueMu.Unlock()
	for _, item := range pending {
		i.reporter.queueDelta(-1)
		i.failBatch(item.requests, item.onCompletion, err)
	}
}

// runBatch executes one dequeued batch on the serving thread.
func (i *Instance) runBatch(item workItem) {
	i.reporter.queueDelta(-1)
	i.Execute(item.requests)
	if item.onCompletion != nil {
		item.onCompletion()
	}
}

// Execute is the backend-facing entry point. Backend failures are attached
// to the affected requests' responses and never propagate as control flow;
// a whole-call failure is applied to every response the backend left
// unfinished.
func (i *Instance) Execute(requests []*backend.Request) {
	err := i.model.backend.Execute(i.info(), requests)
	failed := 0
	for _, r := range requests {
		if !r.Response().Done() {
			r.Response().Complete(err)
		}
		if r.Response().Err() != nil {
			failed++
		}
	}
	if err != nil {
		i.model.logger.Warn().Str("instance", i.name).Err(err).Msg("backend execute failed")
	}
	i.reporter.observeExecution(len(requests), failed)
}

func (i *Instance) failBatch(requests []*backend.Request, onCompletion func(), err error) {
	for _, r := range requests {
		r.Response().Complete(err)
	}
	if onCompletion != nil {
		onCompletion()
	}
}
