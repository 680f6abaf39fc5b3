package review

import (
	"context"
	"sync"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/models"
)

// Phase is a step of the confirm-before-submit flow.
type Phase string

const (
	PhaseDrafting   Phase = "drafting"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseSettled    Phase = "settled"
)

// Flow is the two-phase commit around one decision for one concert:
// drafting -> confirming -> submitting -> settled. A call made in the wrong
// phase fails with InvalidInput, so a second Confirm while the first is in
// flight never reaches the network.
type Flow struct {
	engine    *Engine
	concertID string

	mu       sync.Mutex
	phase    Phase
	decision models.Decision
	note     string
	ack      *Ack
	err      error
}

// NewFlow starts a flow in the drafting phase.
func NewFlow(e *Engine, concertID string) *Flow {
	return &Flow{engine: e, concertID: concertID, phase: PhaseDrafting}
}

// Phase returns the current phase.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Pending returns the proposed decision and note.
func (f *Flow) Pending() (models.Decision, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decision, f.note
}

func wrongPhase(op string, got Phase) error {
	return apperr.New(apperr.InvalidInput, op, "not allowed while "+string(got))
}

// Propose validates a decision and moves drafting -> confirming.
func (f *Flow) Propose(decision models.Decision, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseDrafting {
		return wrongPhase("propose review", f.phase)
	}
	if err := Validate(f.concertID, decision, note); err != nil {
		return err
	}
	f.decision, f.note = decision, note
	f.phase = PhaseConfirming
	return nil
}

// Cancel moves confirming -> drafting, keeping the proposed values.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseConfirming {
		return wrongPhase("cancel review", f.phase)
	}
	f.phase = PhaseDrafting
	return nil
}

// Confirm submits the proposed decision and settles the flow with exactly
// one outcome.
func (f *Flow) Confirm(ctx context.Context, token string) (*Ack, error) {
	f.mu.Lock()
	if f.phase != PhaseConfirming {
		phase := f.phase
		f.mu.Unlock()
		return nil, wrongPhase("confirm review", phase)
	}
	f.phase = PhaseSubmitting
	decision, note := f.decision, f.note
	f.mu.Unlock()

	ack, err := f.engine.Submit(ctx, f.concertID, decision, note, token)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ack, f.err = ack, err
	f.phase = PhaseSettled
	return ack, err
}

// Result returns the settled outcome.
func (f *Flow) Result() (*Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseSettled {
		return nil, wrongPhase("review result", f.phase)
	}
	return f.ack, f.err
}

// Reset moves settled -> drafting so the operator can try again.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseSettled {
		return wrongPhase("reset review", f.phase)
	}
	f.phase = PhaseDrafting
	f.ack, f.err = nil, nil
	return nil
}
