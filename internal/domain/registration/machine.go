// Package registration drives one user through scan, category, material,
// quantity and submit.
package registration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/scancode"
)

// Quoter validates a material and quantity before submission.
type Quoter interface {
	Compute(materialID, quantityRaw string) (award.Result, error)
}

type Submitter interface {
	Submit(ctx context.Context, userID string, draft Draft) (disposals.Record, error)
}

// Snapshot is a copy of the machine's observable state.
type Snapshot struct {
	State State
	Draft Draft
	// Err is the last recoverable error, cleared by the next successful action.
	Err error
	// Record is set once the submission is done.
	Record *disposals.Record
}

// Machine is safe for concurrent use. The mutex is not held while the
// submitter runs; StateSubmitting guards that window instead.
type Machine struct {
	userID    string
	quoter    Quoter
	submitter Submitter

	// scan latch: set while a scan is being handled and for as long as the
	// machine is away from StateScanning
	latch atomic.Bool

	mu           sync.Mutex
	state        State
	draft        Draft
	lastErr      error
	record       *disposals.Record
	beforeSubmit func(Snapshot)
}

func NewMachine(userID string, quoter Quoter, submitter Submitter) *Machine {
	return &Machine{
		userID:    userID,
		quoter:    quoter,
		submitter: submitter,
		state:     StateScanning,
	}
}

// Restore rebuilds a machine from a persisted state and draft. A draft saved
// mid-submission comes back in StateEnterQuantity with its attempt id, so a
// resubmit replays the same attempt.
func Restore(userID string, quoter Quoter, submitter Submitter, state State, draft Draft) (*Machine, error) {
	if !state.Valid() || !draft.consistentWith(state) {
		return nil, fmt.Errorf("%w: state %q", ErrInvalidSnapshot, state)
	}
	if state == StateSubmitting {
		state = StateEnterQuantity
	}
	m := NewMachine(userID, quoter, submitter)
	m.state = state
	m.draft = draft
	if state != StateScanning {
		m.latch.Store(true)
	}
	return m, nil
}

func (m *Machine) UserID() string { return m.userID }

// BeforeSubmit registers fn to receive the StateSubmitting snapshot, attempt
// id included, before the submitter is called.
func (m *Machine) BeforeSubmit(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeSubmit = fn
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state, Draft: m.draft, Err: m.lastErr}
	if m.record != nil {
		rec := *m.record
		s.Record = &rec
	}
	return s
}

// OnScan handles one scan event. It returns true only for the event that
// moves the machine out of StateScanning; events arriving while another is
// being handled, or after the form was entered, are dropped with (false, nil).
func (m *Machine) OnScan(raw string) (bool, error) {
	if !m.latch.CompareAndSwap(false, true) {
		return false, nil
	}

	code, err := scancode.Parse(raw)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateScanning {
		return false, nil
	}
	if err != nil {
		m.lastErr = err
		m.latch.Store(false)
		return false, err
	}
	m.draft = Draft{Site: code}
	m.state = StatePickCategory
	m.lastErr = nil
	return true, nil
}

func (m *Machine) SelectCategory(category string) error {
	category = strings.TrimSpace(category)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(StatePickCategory); err != nil {
		return err
	}
	if category == "" {
		return ErrEmptySelection
	}
	m.draft.Category = category
	m.draft.AttemptID = ""
	m.state = StatePickMaterial
	m.lastErr = nil
	return nil
}

func (m *Machine) SelectMaterial(material string) error {
	material = strings.TrimSpace(material)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(StatePickMaterial); err != nil {
		return err
	}
	if material == "" {
		return ErrEmptySelection
	}
	m.draft.Material = material
	m.draft.AttemptID = ""
	m.state = StateEnterQuantity
	m.lastErr = nil
	return nil
}

// SetQuantity stores the raw text; it is validated on Submit.
func (m *Machine) SetQuantity(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(StateEnterQuantity); err != nil {
		return err
	}
	if text != m.draft.Quantity {
		m.draft.AttemptID = ""
	}
	m.draft.Quantity = text
	m.lastErr = nil
	return nil
}

// Quote runs the calculator on the current draft without changing state.
func (m *Machine) Quote() (award.Result, error) {
	m.mu.Lock()
	if err := m.expect(StateEnterQuantity); err != nil {
		m.mu.Unlock()
		return award.Result{}, err
	}
	material, qty := m.draft.Material, m.draft.Quantity
	m.mu.Unlock()
	return m.quoter.Compute(material, qty)
}

// Submit validates the draft and hands it to the submitter. Validation errors
// leave state and draft untouched. A failed submission returns the machine
// to StateEnterQuantity with the draft, including its attempt id, intact.
func (m *Machine) Submit(ctx context.Context) (disposals.Record, error) {
	m.mu.Lock()
	if err := m.expect(StateEnterQuantity); err != nil {
		m.mu.Unlock()
		return disposals.Record{}, err
	}
	if _, err := m.quoter.Compute(m.draft.Material, m.draft.Quantity); err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return disposals.Record{}, err
	}
	if m.draft.AttemptID == "" {
		m.draft.AttemptID = uuid.NewString()
	}
	draft := m.draft
	m.state = StateSubmitting
	m.lastErr = nil
	hook := m.beforeSubmit
	m.mu.Unlock()

	if hook != nil {
		hook(Snapshot{State: StateSubmitting, Draft: draft})
	}

	rec, err := m.submitter.Submit(ctx, m.userID, draft)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateEnterQuantity
		m.lastErr = err
		return disposals.Record{}, err
	}
	m.state = StateDone
	m.draft = Draft{}
	m.record = &rec
	return rec, nil
}

// Back undoes one step. The same call serves every back affordance.
func (m *Machine) Back() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateEnterQuantity:
		m.draft.Material = ""
		m.draft.AttemptID = ""
		m.state = StatePickMaterial
	case StatePickMaterial:
		m.toScanning()
	case StatePickCategory, StateScanning:
		m.draft = Draft{}
		m.state = StateExited
	case StateSubmitting:
		return m.state, ErrSubmissionInFlight
	default:
		return m.state, fmt.Errorf("%w: back from %s", ErrInvalidTransition, m.state)
	}
	m.lastErr = nil
	return m.state, nil
}

// Cancel drops the draft and goes back to scanning from any form step.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	if !m.state.IsForm() {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, m.state)
	}
	m.toScanning()
	m.lastErr = nil
	return nil
}

// toScanning must be called with mu held.
func (m *Machine) toScanning() {
	m.draft = Draft{}
	m.state = StateScanning
	m.latch.Store(false)
}

// expect must be called with mu held.
func (m *Machine) expect(s State) error {
	if m.state == s {
		return nil
	}
	if m.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	return fmt.Errorf("%w: %s, want %s", ErrInvalidTransition, m.state, s)
}
