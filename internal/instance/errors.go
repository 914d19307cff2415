package instance

import "fmt"

// configError signals a malformed or contradictory instance-group config
// (e.g., an unresolvable device id). Fatal to the instance; aborts
// SetInstances.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

func newConfigError(format string, args ...any) error {
	return configError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}

// resourceError signals an allocation or device-binding failure at startup.
// Retried only if the caller re-invokes SetInstances entirely.
type resourceError struct{ msg string }

func (e resourceError) Error() string { return e.msg }

func newResourceError(format string, args ...any) error {
	return resourceError{msg: fmt.Sprintf(format, args...)}
}

// IsResourceError reports whether err is a resource error.
func IsResourceError(err error) bool {
	_, ok := err.(resourceError)
	return ok
}

// lifecycleError signals a warm-up or serving-lifecycle failure; the
// instance is never scheduled after one.
type lifecycleError struct{ msg string }

func (e lifecycleError) Error() string { return e.msg }

func newLifecycleError(format string, args ...any) error {
	return lifecycleError{msg: fmt.Sprintf(format, args...)}
}

// IsLifecycleError reports whether err is a lifecycle error.
func IsLifecycleError(err error) bool {
	_, ok := err.(lifecycleError)
	return ok
}
