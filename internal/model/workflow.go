package model

// GenerationState is the workflow place of a generation.
type GenerationState string

const (
	StateCreated    GenerationState = "created"
	StateSubmitted  GenerationState = "submitted"
	StateProcessing GenerationState = "processing"
	StateCompleted  GenerationState = "completed"
	StateFailed     GenerationState = "failed"
	StateRefunded   GenerationState = "refunded"
)

type Transition string

const (
	TransitionSubmit          Transition = "submit"
	TransitionStartProcessing Transition = "start_processing"
	TransitionComplete        Transition = "complete"
	TransitionFail            Transition = "fail"
	TransitionRefund          Transition = "refund"
)

type edge struct {
	from []GenerationState
	to   GenerationState
}

var transitions = map[Transition]edge{
	TransitionSubmit:          {from: []GenerationState{StateCreated}, to: StateSubmitted},
	TransitionStartProcessing: {from: []GenerationState{StateSubmitted}, to: StateProcessing},
	TransitionComplete:        {from: []GenerationState{StateProcessing}, to: StateCompleted},
	TransitionFail:            {from: []GenerationState{StateSubmitted, StateProcessing}, to: StateFailed},
	TransitionRefund:          {from: []GenerationState{StateFailed}, to: StateRefunded},
}

// NextState returns the state reached by applying t from s, and whether the
// transition is allowed at all.
func NextState(s GenerationState, t Transition) (GenerationState, bool) {
	e, ok := transitions[t]
	if !ok {
		return s, false
	}
	for _, from := range e.from {
		if from == s {
			return e.to, true
		}
	}
	return s, false
}

func CanTransition(s GenerationState, t Transition) bool {
	_, ok := NextState(s, t)
	return ok
}

func (s GenerationState) IsFinal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRefunded
}

func (s GenerationState) IsInProgress() bool {
	return s == StateSubmitted || s == StateProcessing
}

// IsNormalized reports whether s belongs to the vocabulary providers map
// their raw statuses into.
func (s GenerationState) IsNormalized() bool {
	switch s {
	case StateSubmitted, StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}
