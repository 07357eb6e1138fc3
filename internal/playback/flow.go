package playback

import (
	"errors"
	"fmt"
)

// Stage is one state of the learner flow
type Stage string

const (
	StageIntro              Stage = "intro"
	StagePrimaryContent     Stage = "primary_content"
	StageSupplementalReview Stage = "supplemental_review"
	StageAssessment         Stage = "assessment"
	StageCompletion         Stage = "completion"
	// StageError is entered when the flow could not be loaded or verified
	StageError Stage = "error"
)

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageCompletion
}

// ErrIllegalTransition is returned when an event is not valid in the current stage
var ErrIllegalTransition = errors.New("illegal flow transition")

// EventKind names a flow event
type EventKind string

const (
	// EventBegin leaves the intro
	EventBegin EventKind = "begin"
	// EventStageCompleted records that the outcome of the current content stage was persisted
	EventStageCompleted EventKind = "stage_completed"
	// EventNext advances past a completed content stage
	EventNext EventKind = "next"
	// EventAssessmentSubmitted carries the outcome of a finalized quiz attempt
	EventAssessmentSubmitted EventKind = "assessment_submitted"
	// EventFail moves the flow into the error stage
	EventFail EventKind = "fail"
)

// Event is an input of the flow state machine
type Event struct {
	Kind   EventKind
	Passed bool
	Reason string
}

// FlowState is the state of one learner flow
type FlowState struct {
	Stage                 Stage  `json:"stage"`
	PrimaryCompleted      bool   `json:"primaryCompleted"`
	SupplementalCompleted bool   `json:"supplementalCompleted"`
	AssessmentPassed      bool   `json:"assessmentPassed"`
	Attempts              int    `json:"attempts"`
	ErrorReason           string `json:"errorReason,omitempty"`
}

// ResumeFacts is what was found in the progress store when a flow is activated
type ResumeFacts struct {
	CompletionExists      bool
	PrimaryCompleted      bool
	SupplementalCompleted bool
	// AssessmentDone is true when a finalized attempt lets the learner leave the assessment
	AssessmentDone bool
	Attempts       int
}

// Flow is the transition table of one module: which optional stages it has and whether
// the assessment must be passed.
type Flow struct {
	HasSupplemental bool
	HasQuiz         bool
	RequirePass     bool
}

// Resume computes the stage a flow continues from
func (f Flow) Resume(facts ResumeFacts) FlowState {
	st := FlowState{
		PrimaryCompleted:      facts.PrimaryCompleted || facts.CompletionExists,
		SupplementalCompleted: facts.SupplementalCompleted,
		AssessmentPassed:      facts.AssessmentDone,
		Attempts:              facts.Attempts,
	}
	switch {
	case facts.CompletionExists:
		st.Stage = StageCompletion
	case !facts.PrimaryCompleted:
		st.Stage = StageIntro
	case f.HasSupplemental && !facts.SupplementalCompleted:
		st.Stage = StageSupplementalReview
	case f.HasQuiz && !facts.AssessmentDone:
		st.Stage = StageAssessment
	default:
		st.Stage = StageCompletion
	}
	return st
}

// Failed returns the error state for a flow that could not be loaded
func Failed(reason string) FlowState {
	return FlowState{Stage: StageError, ErrorReason: reason}
}

// Transition applies ev to st and returns the next state. st is never modified.
func (f Flow) Transition(st FlowState, ev Event) (FlowState, error) {
	next := st
	if st.Stage.Terminal() {
		return st, illegal(st.Stage, ev.Kind)
	}

	switch ev.Kind {
	case EventFail:
		next.Stage = StageError
		next.ErrorReason = ev.Reason
		return next, nil

	case EventBegin:
		if st.Stage != StageIntro {
			return st, illegal(st.Stage, ev.Kind)
		}
		next.Stage = StagePrimaryContent
		return next, nil

	case EventStageCompleted:
		switch st.Stage {
		case StagePrimaryContent:
			next.PrimaryCompleted = true
		case StageSupplementalReview:
			next.SupplementalCompleted = true
		default:
			return st, illegal(st.Stage, ev.Kind)
		}
		return next, nil

	case EventNext:
		switch st.Stage {
		case StagePrimaryContent:
			if !st.PrimaryCompleted {
				return st, fmt.Errorf("%w: primary content is not completed", ErrIllegalTransition)
			}
			next.Stage = f.afterPrimary()
		case StageSupplementalReview:
			if !st.SupplementalCompleted {
				return st, fmt.Errorf("%w: supplemental review is not completed", ErrIllegalTransition)
			}
			next.Stage = f.afterSupplemental()
		default:
			return st, illegal(st.Stage, ev.Kind)
		}
		return next, nil

	case EventAssessmentSubmitted:
		if st.Stage != StageAssessment {
			return st, illegal(st.Stage, ev.Kind)
		}
		next.Attempts++
		if ev.Passed || !f.RequirePass {
			if !st.PrimaryCompleted {
				return st, fmt.Errorf("%w: primary content is not completed", ErrIllegalTransition)
			}
			next.AssessmentPassed = ev.Passed
			next.Stage = StageCompletion
		}
		return next, nil

	default:
		return st, illegal(st.Stage, ev.Kind)
	}
}

func (f Flow) afterPrimary() Stage {
	if f.HasSupplemental {
		return StageSupplementalReview
	}
	return f.afterSupplemental()
}

func (f Flow) afterSupplemental() Stage {
	if f.HasQuiz {
		return StageAssessment
	}
	return StageCompletion
}

func illegal(stage Stage, ev EventKind) error {
	return fmt.Errorf("%w: %s in stage %s", ErrIllegalTransition, ev, stage)
}
