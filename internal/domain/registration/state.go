package registration

import (
	"errors"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/scancode"
)

type State string

const (
	StateScanning      State = "reg:scanning"
	StatePickCategory  State = "reg:pick_category"
	StatePickMaterial  State = "reg:pick_material"
	StateEnterQuantity State = "reg:enter_quantity"
	StateSubmitting    State = "reg:submitting"
	StateDone          State = "reg:done"
	StateExited        State = "reg:exited"
)

var (
	ErrInvalidTransition  = errors.New("registration: action not valid in current state")
	ErrSubmissionInFlight = errors.New("registration: submission in progress")
	ErrEmptySelection     = errors.New("registration: empty selection")
	ErrInvalidSnapshot    = errors.New("registration: snapshot is inconsistent")
)

// IsForm reports whether s is one of the three form steps.
func (s State) IsForm() bool {
	switch s {
	case StatePickCategory, StatePickMaterial, StateEnterQuantity:
		return true
	}
	return false
}

// Terminal states end the flow; the machine accepts no further actions.
func (s State) Terminal() bool {
	return s == StateDone || s == StateExited
}

func (s State) Valid() bool {
	switch s {
	case StateScanning, StatePickCategory, StatePickMaterial, StateEnterQuantity,
		StateSubmitting, StateDone, StateExited:
		return true
	}
	return false
}

// Draft is the in-progress disposal. Material implies Category; Quantity is
// the raw user text and only meaningful once Material is set.
type Draft struct {
	Site      scancode.Code `json:"site"`
	Category  string        `json:"category,omitempty"`
	Material  string        `json:"material,omitempty"`
	Quantity  string        `json:"quantity,omitempty"`
	AttemptID string        `json:"attempt_id,omitempty"`
}

func (d Draft) IsZero() bool { return d == Draft{} }

// consistentWith checks the fields a state requires.
func (d Draft) consistentWith(s State) bool {
	if d.Material != "" && d.Category == "" {
		return false
	}
	switch s {
	case StateScanning:
		return d.IsZero()
	case StatePickCategory:
		return !d.Site.IsZero() && d.Category == ""
	case StatePickMaterial:
		return !d.Site.IsZero() && d.Category != "" && d.Material == ""
	case StateEnterQuantity, StateSubmitting:
		return !d.Site.IsZero() && d.Material != ""
	}
	return true
}
