package instance

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"instanced/internal/backend"
	"instanced/internal/bufalloc"
	"instanced/pkg/types"
)

// Options configures instance-set construction for one model.
type Options struct {
	Logger    zerolog.Logger
	Publisher EventPublisher
	Allocator bufalloc.Allocator
	// EnableMetrics attaches a MetricReporter to every instance.
	EnableMetrics bool
	HostPolicies  types.HostPolicyMap
	BackendConfig types.CmdlineConfig
	// AvailableGPUs enumerates devices used when a GPU group declares no
	// explicit device list.
	AvailableGPUs []int
	// DeviceBlocking groups GPU instances with equivalent signatures onto
	// one shared thread, serializing their execution on the device.
	DeviceBlocking bool
	// Nice is the thread priority hint passed to device binding.
	Nice int
	// Equivalence overrides the signature comparison; nil selects
	// DefaultEquivalence.
	Equivalence Equivalence
}

// Model owns a set of instances and their execution threads. It outlives
// every instance it constructs.
type Model struct {
	name          string
	config        types.ModelConfig
	backend       backend.Backend
	logger        zerolog.Logger
	publisher     EventPublisher
	allocator     bufalloc.Allocator
	backendConfig types.CmdlineConfig
	opts          Options

	mu        sync.Mutex
	instances []*Instance
	// threads is the thread-group registry, keyed by device-policy id
	// plus the seeding instance name so each created thread has its own
	// entry. The registry owns thread lifetime; instances hold a handle.
	threads map[string]*backendThread
}

// NewModel wraps a validated model configuration and a backend. Call
// SetInstances to build the instance set.
func NewModel(cfg types.ModelConfig, be backend.Backend, opts Options) (*Model, error) {
	if be == nil {
		return nil, newConfigError("model %s: nil backend", cfg.Name)
	}
	if cfg.Name == "" {
		return nil, newConfigError("model configuration missing a name")
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Allocator == nil {
		opts.Allocator = bufalloc.Heap()
	}
	return &Model{
		name:          cfg.Name,
		config:        cfg,
		backend:       be,
		logger:        opts.Logger,
		publisher:     opts.Publisher,
		allocator:     opts.Allocator,
		backendConfig: opts.BackendConfig,
		opts:          opts,
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Config returns the model configuration.
func (m *Model) Config() types.ModelConfig { return m.config }

// Instances returns the current instance set in creation order.
func (m *Model) Instances() []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Instance, len(m.instances))
	copy(out, m.instances)
	return out
}

// ThreadCount returns the number of live execution threads.
func (m *Model) ThreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads)
}

// SetInstances expands the model's instance groups into deduplicated,
// grouped instances bound to execution threads, then initializes and warms
// each one up on its own thread. Any failure tears down everything built
// so far and returns the originating error; partial sets are never left
// running. A previous instance set is torn down first, so re-invoking
// SetInstances is the retry path for startup failures.
func (m *Model) SetInstances() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()

	var built []*Instance
	threads := make(map[string]*backendThread)
	fail := func(err error) error {
		for _, th := range threads {
			th.StopBackendThread()
		}
		m.finalizeInstances(built)
		m.publisher.Publish(Event{Name: "set_instances_failed", Model: m.name,
			Fields: map[string]any{"error": err.Error()}})
		return err
	}

	for gi, group := range m.config.InstanceGroups {
		groupName := group.Name
		if groupName == "" {
			groupName = fmt.Sprintf("%s_%d", m.name, gi)
		}
		devices, err := m.groupDevices(group)
		if err != nil {
			return fail(err)
		}
		count := group.Count
		if count < 1 {
			count = 1
		}
		seq := 0
		for c := 0; c < count; c++ {
			for _, dev := range devices {
				name := fmt.Sprintf("%s_%d", groupName, seq)
				seq++
				inst, err := m.createInstance(name, group, dev, threads, built)
				if err != nil {
					return fail(err)
				}
				built = append(built, inst)
			}
		}
	}

	// Initialize then warm up, in creation order, before any instance is
	// eligible for scheduling. Active instances run both on their thread;
	// passive ones initialize here since they have no thread.
	for _, inst := range built {
		if inst.passive {
			if err := inst.Initialize(); err != nil {
				return fail(err)
			}
			continue
		}
		if err := inst.thread.InitAndWarmUpModelInstance(inst); err != nil {
			return fail(err)
		}
	}

	m.instances = built
	m.threads = threads
	m.logger.Info().Str("model", m.name).Int("instances", len(built)).Int("threads", len(threads)).Msg("instance set ready")
	return nil
}

func (m *Model) createInstance(name string, group types.InstanceGroup, dev int, threads map[string]*backendThread, built []*Instance) (*Instance, error) {
	policyName := group.HostPolicy
	if policyName == "" {
		policyName = defaultPolicyName(group.Kind, dev)
	}
	policy := m.opts.HostPolicies[policyName]
	policyMessage, err := json.Marshal(map[string]types.HostPolicy{policyName: policy})
	if err != nil {
		return nil, newConfigError("host policy %s: %v", policyName, err)
	}

	inst := &Instance{
		model:             m,
		name:              name,
		signature:         NewSignatureWith(group, dev, m.opts.Equivalence),
		kind:              group.Kind,
		deviceID:          dev,
		hostPolicyName:    policyName,
		hostPolicy:        policy,
		hostPolicyMessage: policyMessage,
		profiles:          group.Profiles,
		passive:           group.Passive,
		secondaryDevices:  secondaryDevices(group),
	}
	if m.opts.EnableMetrics {
		inst.reporter = newMetricReporter(m.name, name, dev)
	}
	m.publisher.Publish(Event{Name: "instance_created", Model: m.name, Instance: name,
		Fields: map[string]any{"device": dev, "passive": group.Passive}})
	if group.Passive {
		// Passive instances hold shared state only; no thread, never
		// scheduled.
		return inst, nil
	}

	if m.shareable(group) {
		for _, prev := range built {
			if prev.thread == nil {
				continue
			}
			if prev.signature.Equals(inst.signature) {
				// Consumed: this signature joined an existing group and
				// must not seed another one in the same pass.
				inst.signature.DisableMatching()
				prev.thread.AddModelInstance(inst)
				return inst, nil
			}
		}
	}

	// Every created thread gets its own registry entry. The device-policy
	// id alone is not unique: two non-equivalent groups can share a device
	// and policy without matching, so the seeding instance name is part of
	// the key.
	key := threadKey(group.Kind, dev, policyName) + "_" + name
	th, err := createBackendThread(name, m, m.opts.Nice, dev)
	if err != nil {
		return nil, err
	}
	th.AddModelInstance(inst)
	threads[key] = th
	return inst, nil
}

// shareable reports whether the group's policy allows serializing several
// instances onto one device-exclusive thread.
func (m *Model) shareable(group types.InstanceGroup) bool {
	return m.opts.DeviceBlocking && group.Kind == types.KindGPU
}

func (m *Model) groupDevices(group types.InstanceGroup) ([]int, error) {
	switch group.Kind {
	case types.KindCPU, types.KindModel, "":
		return []int{cpuDeviceID}, nil
	case types.KindGPU:
		if len(group.GPUs) > 0 {
			return group.GPUs, nil
		}
		if len(m.opts.AvailableGPUs) == 0 {
			return nil, newConfigError("model %s: group %s requires a GPU but none are available", m.name, group.Name)
		}
		return m.opts.AvailableGPUs, nil
	default:
		return nil, newConfigError("model %s: unknown instance group kind %q", m.name, group.Kind)
	}
}

// Close stops and joins every execution thread, then finalizes instances.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Model) closeLocked() {
	for _, th := range m.threads {
		th.StopBackendThread()
	}
	m.finalizeInstances(m.instances)
	m.threads = nil
	m.instances = nil
}

func (m *Model) finalizeInstances(instances []*Instance) {
	for _, inst := range instances {
		if !inst.initialized.Load() {
			continue
		}
		if err := m.backend.InstanceFinalize(inst.info()); err != nil {
			m.logger.Warn().Str("instance", inst.name).Err(err).Msg("finalize failed")
		}
	}
}

// Status reports the live instance set for the status surface.
func (m *Model) Status() types.ModelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := types.ModelStatus{Name: m.name, Threads: len(m.threads)}
	for _, inst := range m.instances {
		state := "created"
		if inst.ready.Load() || (inst.passive && inst.initialized.Load()) {
			state = "ready"
		}
		st.Instances = append(st.Instances, types.InstanceStatus{
			Name:     inst.name,
			Kind:     inst.kind,
			DeviceID: inst.deviceID,
			Passive:  inst.passive,
			State:    state,
			Profiles: inst.profiles,
			Metrics:  inst.reporter != nil,
		})
	}
	return st
}

func defaultPolicyName(kind types.InstanceGroupKind, dev int) string {
	if kind == types.KindGPU {
		return fmt.Sprintf("gpu_%d", dev)
	}
	if kind == "" {
		kind = types.KindCPU
	}
	return string(kind)
}

func threadKey(kind types.InstanceGroupKind, dev int, policy string) string {
	return fmt.Sprintf("%s_%d_%s", kind, dev, policy)
}

func secondaryDevices(group types.InstanceGroup) []SecondaryDevice {
	if len(group.SecondaryDevices) == 0 {
		return nil
	}
	out := make([]SecondaryDevice, 0, len(group.SecondaryDevices))
	for _, sd := range group.SecondaryDevices {
		out = append(out, SecondaryDevice{Kind: sd.Kind, ID: sd.ID})
	}
	return out
}
