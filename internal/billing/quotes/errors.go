package quotes

import "fmt"

// TransitionReason classifies why a status change was refused.
type TransitionReason string

const (
	ReasonInvalidTransition TransitionReason = "invalid_transition"
	ReasonAlreadyTerminal   TransitionReason = "already_terminal"
	ReasonExpired           TransitionReason = "expired"
)

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	From   QuoteStatus
	Action Action
	Reason TransitionReason
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("quotes: cannot %s quote in status %s (%s)", e.Action, e.From, e.Reason)
}

// NotEditableError reports an attempted edit on a record whose status no
// longer allows mutation without creating a new version.
type NotEditableError struct {
	QuoteID int64
	Status  QuoteStatus
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("quotes: quote %d is not editable in status %s", e.QuoteID, e.Status)
}

// ChainIntegrityError reports a violated version-chain invariant. It indicates
// a caller bug rather than user error and should be unreachable in correct
// usage.
type ChainIntegrityError struct {
	RootID int64
	Detail string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("quotes: version chain %d integrity violated: %s", e.RootID, e.Detail)
}
