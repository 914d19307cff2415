// Package backend defines the native execution-plugin contract consumed by
// the instance execution core. Concrete implementations (stub, llama.cpp)
// perform the actual computation; the core only routes requests to them.
package backend

import "instanced/pkg/types"

// InstanceInfo identifies the instance a backend call is made for.
type InstanceInfo struct {
	Model      string
	Name       string
	Kind       types.InstanceGroupKind
	DeviceID   int
	HostPolicy types.HostPolicy
	Config     types.CmdlineConfig
}

// Backend abstracts the model runtime executing requests for an instance.
type Backend interface {
	// Name identifies the backend implementation.
	Name() string
	// InstanceInitialize prepares per-instance runtime state. Called on the
	// instance's execution thread so device context is already bound.
	InstanceInitialize(info InstanceInfo) error
	// Execute runs an ordered batch of requests. Per-request failures must
	// be attached to each request's Response; a non-nil return indicates
	// the whole call failed and is applied to every unfinished response by
	// the caller.
	Execute(info InstanceInfo, reqs []*Request) error
	// InstanceFinalize releases per-instance runtime state.
	InstanceFinalize(info InstanceInfo) error
}

// DeviceBinder is implemented by backends that require the execution thread
// to be bound to a device context before any work is dispatched. BindDevice
// is invoked on the freshly started thread, before its serving loop.
type DeviceBinder interface {
	BindDevice(deviceID, nice int) error
}
