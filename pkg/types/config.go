package types

// InstanceGroupKind selects the device class an instance group runs on.
type InstanceGroupKind string

const (
	// KindCPU instances run on host CPU; their device id is always 0.
	KindCPU InstanceGroupKind = "cpu"
	// KindGPU instances are bound to a specific accelerator device id.
	KindGPU InstanceGroupKind = "gpu"
	// KindModel leaves device selection to the backend (custom placement).
	KindModel InstanceGroupKind = "model"
)

// WarmupSource selects how a warm-up input's data is produced.
type WarmupSource string

const (
	// WarmupZero fills the input with zero bytes.
	WarmupZero WarmupSource = "zero"
	// WarmupRandom fills the input with random bytes.
	WarmupRandom WarmupSource = "random"
	// WarmupProvided uses literal data from the configuration.
	WarmupProvided WarmupSource = "data"
)

// SecondaryDeviceSpec names an auxiliary device used by a multi-device
// instance beyond its primary device id (e.g., a model shard spanning
// several accelerators).
type SecondaryDeviceSpec struct {
	Kind string `json:"kind" yaml:"kind" toml:"kind"`
	ID   int64  `json:"id" yaml:"id" toml:"id"`
}

// RateLimiterResource is one named resource consumed per execution.
type RateLimiterResource struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Global bool   `json:"global,omitempty" yaml:"global,omitempty" toml:"global,omitempty"`
	Count  uint32 `json:"count" yaml:"count" toml:"count"`
}

// RateLimiterSpec is the rate-limiter configuration attached to an instance
// group. Only consumed here for signature comparison; admission logic lives
// in the rate limiter itself.
type RateLimiterSpec struct {
	Resources []RateLimiterResource `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources,omitempty"`
	Priority  uint32                `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
}

// InstanceGroup is one validated instance-group declaration from a model's
// configuration. Count replicas are created; for GPU kind each replica is
// bound to one device id from GPUs (or enumerated from the available
// devices when GPUs is empty).
type InstanceGroup struct {
	Name             string                `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Kind             InstanceGroupKind     `json:"kind" yaml:"kind" toml:"kind"`
	Count            int                   `json:"count,omitempty" yaml:"count,omitempty" toml:"count,omitempty"`
	GPUs             []int                 `json:"gpus,omitempty" yaml:"gpus,omitempty" toml:"gpus,omitempty"`
	Profiles         []string              `json:"profiles,omitempty" yaml:"profiles,omitempty" toml:"profiles,omitempty"`
	Passive          bool                  `json:"passive,omitempty" yaml:"passive,omitempty" toml:"passive,omitempty"`
	HostPolicy       string                `json:"host_policy,omitempty" yaml:"host_policy,omitempty" toml:"host_policy,omitempty"`
	SecondaryDevices []SecondaryDeviceSpec `json:"secondary_devices,omitempty" yaml:"secondary_devices,omitempty" toml:"secondary_devices,omitempty"`
	RateLimiter      *RateLimiterSpec      `json:"rate_limiter,omitempty" yaml:"rate_limiter,omitempty" toml:"rate_limiter,omitempty"`
}

// WarmupInput describes one synthetic input tensor for a warm-up request.
// Only shape and element size are interpreted here; tensor contents are
// opaque to the execution core.
type WarmupInput struct {
	Name        string       `json:"name" yaml:"name" toml:"name"`
	Dims        []int64      `json:"dims" yaml:"dims" toml:"dims"`
	ElementSize int64        `json:"element_size" yaml:"element_size" toml:"element_size"`
	Source      WarmupSource `json:"source" yaml:"source" toml:"source"`
	// Data holds literal input bytes when Source is WarmupProvided.
	Data string `json:"data,omitempty" yaml:"data,omitempty" toml:"data,omitempty"`
}

// WarmupEntry names one warm-up sample: a batch of BatchSize requests
// executed Count times before the instance starts serving real traffic.
type WarmupEntry struct {
	Name      string        `json:"name" yaml:"name" toml:"name"`
	BatchSize int           `json:"batch_size,omitempty" yaml:"batch_size,omitempty" toml:"batch_size,omitempty"`
	Count     int           `json:"count,omitempty" yaml:"count,omitempty" toml:"count,omitempty"`
	Inputs    []WarmupInput `json:"inputs" yaml:"inputs" toml:"inputs"`
}

// ModelConfig is the validated per-model configuration consumed by the
// instance-set builder. Parsing and validation happen upstream.
type ModelConfig struct {
	Name           string          `json:"name" yaml:"name" toml:"name"`
	MaxBatchSize   int             `json:"max_batch_size,omitempty" yaml:"max_batch_size,omitempty" toml:"max_batch_size,omitempty"`
	InstanceGroups []InstanceGroup `json:"instance_groups" yaml:"instance_groups" toml:"instance_groups"`
	Warmup         []WarmupEntry   `json:"warmup,omitempty" yaml:"warmup,omitempty" toml:"warmup,omitempty"`
}

// HostPolicy is one named host policy: free-form setting/value pairs passed
// through to the backend (e.g., NUMA node pinning).
type HostPolicy map[string]string

// HostPolicyMap maps policy name to policy settings.
type HostPolicyMap map[string]HostPolicy

// CmdlineConfig carries backend command-line overrides as setting/value
// pairs.
type CmdlineConfig map[string]string
