package verifier

import (
	"errors"

	"github.com/twinbase/twinbase-dlt/pkg/types"
)

// State of the validation state machine
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateDone       State = "done"
)

// ErrValidationInProgress is returned when a validation or reset is requested
// while another validation is running
var ErrValidationInProgress = errors.New("validation already in progress")

func (v *Verifier) begin() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateValidating {
		return ErrValidationInProgress
	}
	v.state = StateValidating
	v.last = nil
	return nil
}

func (v *Verifier) finish(validation *Validation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateDone
	v.last = validation
}

// Reset moves a finished validation back to idle
func (v *Verifier) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateValidating {
		return ErrValidationInProgress
	}
	v.state = StateIdle
	v.last = nil
	return nil
}

// State returns the current state and the last result when done
func (v *Verifier) State() (State, *Validation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.last
}

// Status renders the state for the HTTP API
func (v *Verifier) Status() *types.StatusResponseV1 {
	state, last := v.State()
	status := &types.StatusResponseV1{State: string(state)}
	if last != nil {
		success := last.Success
		status.Success = &success
		status.Error = last.Error
	}
	return status
}
