package types

// InstanceStatus summarizes a live instance for /status.
type InstanceStatus struct {
	// Instance name, e.g. "resnet_0_gpu0".
	Name string `json:"name"`
	// Device class the instance runs on.
	Kind InstanceGroupKind `json:"kind"`
	// Primary device id (0 for CPU instances).
	DeviceID int `json:"device_id"`
	// Passive instances hold shared state only and are never scheduled.
	Passive bool `json:"passive,omitempty"`
	// Lifecycle state: "created", "ready" or "error".
	State string `json:"state"`
	// Optimization profiles enabled for this instance.
	Profiles []string `json:"profiles,omitempty"`
	// Whether a metric reporter is attached.
	Metrics bool `json:"metrics"`
}

// ModelStatus summarizes one model's instance set.
type ModelStatus struct {
	Name      string           `json:"name"`
	Threads   int              `json:"threads"`
	Instances []InstanceStatus `json:"instances"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Models []ModelStatus `json:"models"`
	Ready  bool          `json:"ready"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
