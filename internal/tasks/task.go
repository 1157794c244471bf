// Package tasks implements the six cooperating pipeline tasks described
// by the driver's concurrency model: Listener, Sorter, Keepalive,
// Commander, Classifier, and Notifier each run as an independent
// goroutine-backed Task, communicating only through the bounded queues in
// Queues and the shared session.State — never through direct references to
// one another, so the Classifier-enqueues/Commander-acks cycle resolves
// through message passing alone.
package tasks

import (
	"sync"
	"time"
)

// Timing constants shared by every task.
const (
	// MinTimeout governs idle polling sleeps when a queue is empty.
	MinTimeout = 100 * time.Millisecond
	// MaxTimeout governs the serial read timeout and the keepalive period.
	MaxTimeout = 5000 * time.Millisecond
	// KillTimeout is how long the Supervisor waits for tasks to drain on kill.
	KillTimeout = MaxTimeout / 10

	ListenerTimeoutLimit  = 3 // consecutive framing timeouts before Listener exits
	ReconnectErrorLimit   = 3 // consecutive NotConnected responses before fatal
	SendConnectRetryLimit = 3
)

// State is a task's lifecycle state, polled cooperatively by its owner.
type State int32

const (
	StateRunning State = iota
	StateTimeout
	StateError
	StateKilled
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTimeout:
		return "timeout"
	case StateError:
		return "error"
	case StateKilled:
		return "killed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Task is the common interface every pipeline task implements: Run executes
// the task's loop until it exits or is killed; Kill requests cooperative
// shutdown; State reports why the task last stopped (or that it's still
// running).
type Task interface {
	Run()
	Kill()
	State() State
}

// Bag is the concurrent task registry: a name->Task map where
// TryAdd evicts and kills any prior task registered under the same name.
type Bag struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewBag returns an empty Bag.
func NewBag() *Bag { return &Bag{tasks: make(map[string]Task)} }

// TryAdd registers t under name, killing and replacing any task already
// registered under that name.
func (b *Bag) TryAdd(name string, t Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.tasks[name]; ok {
		prev.Kill()
	}
	b.tasks[name] = t
}

// Get returns the task registered under name, if any.
func (b *Bag) Get(name string) (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[name]
	return t, ok
}

// KillAll requests cooperative shutdown of every registered task.
func (b *Bag) KillAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tasks {
		t.Kill()
	}
}

// Names returns the currently registered task names.
func (b *Bag) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.tasks))
	for n := range b.tasks {
		names = append(names, n)
	}
	return names
}

// HealthCheck removes and returns the names of tasks observed in a faulted
// state (Timeout or Error), so the Supervisor can react to them.
func (b *Bag) HealthCheck() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var faulted []string
	for name, t := range b.tasks {
		switch t.State() {
		case StateTimeout, StateError:
			faulted = append(faulted, name)
			delete(b.tasks, name)
		}
	}
	return faulted
}
