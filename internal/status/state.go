package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amarchetti/teledoc/internal/bus"
)

// State is a runtime state of the archiver's delivery loop.
type State string

const (
	Booting   State = "BOOTING"
	Idle      State = "IDLE"
	Buffering State = "BUFFERING"
	Flushing  State = "FLUSHING"
	Degraded  State = "DEGRADED"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions. The single Flushing
// state is what makes flushes mutually exclusive.
var validTransitions = map[State][]State{
	Booting:   {Idle, Error},
	Idle:      {Buffering, Flushing, Error},
	Buffering: {Flushing, Error},
	Flushing:  {Idle, Degraded, Error},
	Degraded:  {Idle, Error},
	Error:     {Booting},
}

// Machine tracks and enforces delivery-loop state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error when the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: to},
		})
	}
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State
	To   State
}
