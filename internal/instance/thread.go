package instance

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"instanced/internal/backend"
)

// idlePollInterval bounds how long the serving loop sleeps when every owned
// instance's queue is empty.
const idlePollInterval = 2 * time.Millisecond

// controlJob runs a function on the backend thread itself and reports the
// result to the submitter. Used for init/warm-up so device context is
// guaranteed correct.
type controlJob struct {
	fn  func() error
	res chan error
}

// backendThread is a single OS-locked goroutine bound to one device (or one
// device-policy group). Instances attached to it serialize their execution:
// the loop drains each instance's queue to completion in registration
// order, round-robin, never concurrently.
type backendThread struct {
	name     string
	nice     int
	deviceID int
	model    *Model

	mu        sync.Mutex
	instances []*Instance // registration order

	control chan controlJob
	wake    chan struct{}
	exit    atomic.Bool
	done    chan struct{}
	joined  sync.Once
}

// createBackendThread starts the thread and binds it to its device context.
// Binding happens on the thread itself before the serving loop; a binding
// failure is surfaced here as a startup error and the thread never serves.
func createBackendThread(name string, m *Model, nice, deviceID int) (*backendThread, error) {
	t := &backendThread{
		name:     name,
		nice:     nice,
		deviceID: deviceID,
		model:    m,
		control:  make(chan controlJob),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	ready := make(chan error, 1)
	go t.run(ready)
	if err := <-ready; err != nil {
		return nil, newResourceError("backend thread %s: device binding failed: %v", name, err)
	}
	m.publisher.Publish(Event{Name: "thread_start", Model: m.name, Fields: map[string]any{
		"thread": name, "device": deviceID,
	}})
	return t, nil
}

// AddModelInstance registers an additional instance to be served on this
// thread. Safe to call before the thread enters its serving phase; the
// instance is not dispatched until its warm-up completes.
func (t *backendThread) AddModelInstance(inst *Instance) {
	t.mu.Lock()
	t.instances = append(t.instances, inst)
	t.mu.Unlock()
	inst.thread = t
}

// InitAndWarmUpModelInstance runs Initialize then WarmUp for inst on the
// thread itself, not the caller, and blocks until both finish. A failure
// aborts startup for that instance; it is not retried.
func (t *backendThread) InitAndWarmUpModelInstance(inst *Instance) error {
	job := controlJob{res: make(chan error, 1)}
	job.fn = func() error {
		if err := inst.Initialize(); err != nil {
			return err
		}
		if err := inst.WarmUp(); err != nil {
			return err
		}
		inst.ready.Store(true)
		return nil
	}
	select {
	case t.control <- job:
	case <-t.done:
		return newLifecycleError("backend thread %s stopped before initializing %s", t.name, inst.name)
	}
	// Once accepted, the job is always answered: by the loop, or by the
	// drain pass on exit.
	return <-job.res
}

// StopBackendThread sets the exit flag, wakes the loop and joins the
// thread. The flag is observed between dequeued units of work: in-flight
// batches run to completion, batches still queued are failed through
// their responses, and nothing new is started afterwards.
func (t *backendThread) StopBackendThread() {
	t.exit.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
	t.joined.Do(func() {
		<-t.done
		t.model.publisher.Publish(Event{Name: "thread_stop", Model: t.model.name, Fields: map[string]any{
			"thread": t.name, "device": t.deviceID,
		}})
	})
}

func (t *backendThread) stopped() bool { return t.exit.Load() }

func (t *backendThread) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *backendThread) snapshot() []*Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Instance, len(t.instances))
	copy(out, t.instances)
	return out
}

func (t *backendThread) run(ready chan<- error) {
	// The device context bound below belongs to this OS thread exclusively.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	if binder, ok := t.model.backend.(backend.DeviceBinder); ok {
		if err := binder.BindDevice(t.deviceID, t.nice); err != nil {
			ready <- err
			return
		}
	}
	ready <- nil
	t.model.logger.Debug().Str("thread", t.name).Int("device", t.deviceID).Msg("backend thread serving")

	for !t.exit.Load() {
		if t.step() {
			continue
		}
		select {
		case job := <-t.control:
			job.res <- job.fn()
		case <-t.wake:
		case <-time.After(idlePollInterval):
		}
	}

	// Fail batches that were enqueued but never started so their responses
	// complete and their callbacks fire. Closing the queues also makes any
	// later Schedule fail up front.
	stopErr := newLifecycleError("backend thread %s stopped", t.name)
	for _, inst := range t.snapshot() {
		inst.failPending(stopErr)
	}

	// Answer any control jobs still queued so waiters do not hang.
	for {
		select {
		case job := <-t.control:
			job.res <- newLifecycleError("backend thread %s stopped", t.name)
		default:
			return
		}
	}
}

// step performs one serving pass: pending control jobs first, then each
// owned instance's queued batches to completion, in registration order.
// Returns whether any work was done.
func (t *backendThread) step() bool {
	progressed := false
	select {
	case job := <-t.control:
		job.res <- job.fn()
		progressed = true
	default:
	}
	for _, inst := range t.snapshot() {
		if !inst.ready.Load() {
			continue
		}
		for {
			if t.exit.Load() {
				return progressed
			}
			item, ok := inst.dequeue()
			if !ok {
				break
			}
			inst.runBatch(item)
			progressed = true
		}
	}
	return progressed
}
