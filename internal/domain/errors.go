package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation               = errors.New("validation error")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrDegenerateSupport        = errors.New("degenerate support")
	ErrLowDecompositionQuality  = errors.New("low decomposition quality")
	ErrNumericalInstability     = errors.New("numerical instability")
	ErrEpochAlreadyProcessed    = errors.New("epoch already processed")
	ErrBeliefNotFound           = errors.New("belief not found")
	ErrAgentNotFound            = errors.New("agent not found")
)

// EpochError carries the error kind together with the identifiers needed to
// trace it. Kind is one of the sentinel errors above and is what errors.Is
// matches against.
type EpochError struct {
	Kind     error
	Stage    Stage
	BeliefID uuid.UUID
	Epoch    int64
	AgentID  uuid.UUID
	Detail   string
	Err      error
}

func (e *EpochError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	var ctx []string
	if e.BeliefID != uuid.Nil {
		ctx = append(ctx, "belief_id="+e.BeliefID.String())
		ctx = append(ctx, fmt.Sprintf("epoch=%d", e.Epoch))
	}
	if e.AgentID != uuid.Nil {
		ctx = append(ctx, "agent_id="+e.AgentID.String())
	}
	if e.Stage != "" {
		ctx = append(ctx, "stage="+string(e.Stage))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *EpochError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewError builds an EpochError of the given kind.
func NewError(kind error, format string, args ...any) *EpochError {
	return &EpochError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// ValidationErrorf is shorthand for a validation failure.
func ValidationErrorf(format string, args ...any) *EpochError {
	return NewError(ErrValidation, format, args...)
}

// WithAgent sets the agent the error relates to.
func (e *EpochError) WithAgent(id uuid.UUID) *EpochError {
	e.AgentID = id
	return e
}

// Annotate fills in belief, epoch and stage on err when it is an EpochError
// that does not carry them yet. Other errors are returned unchanged.
func Annotate(err error, beliefID uuid.UUID, epoch int64, stage Stage) error {
	if err == nil {
		return nil
	}
	var ee *EpochError
	if !errors.As(err, &ee) {
		return err
	}
	if ee.BeliefID == uuid.Nil {
		ee.BeliefID = beliefID
		ee.Epoch = epoch
	}
	if ee.Stage == "" {
		ee.Stage = stage
	}
	return ee
}

// IsBusinessRule reports whether err is one of the aggregation failures a
// caller may answer with a fallback strategy.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientParticipants) ||
		errors.Is(err, ErrDegenerateSupport) ||
		errors.Is(err, ErrLowDecompositionQuality)
}
