package quotes

import "time"

// Action is a request to move a quote through its lifecycle.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionAccept  Action = "accept"
	ActionExpire  Action = "expire"
	ActionConvert Action = "convert"
)

// transitions is the closed table of legal status changes. Anything absent
// here is refused; no transition may skip intermediate states.
var transitions = map[QuoteStatus]map[Action]QuoteStatus{
	StatusDraft: {
		ActionSubmit: StatusPendingValidation,
	},
	StatusPendingValidation: {
		ActionApprove: StatusAwaitingAcceptance,
		ActionReject:  StatusRejected,
	},
	StatusAwaitingAcceptance: {
		ActionAccept: StatusAccepted,
		ActionReject: StatusRejected,
		ActionExpire: StatusExpired,
	},
	StatusAccepted: {
		ActionConvert: StatusConverted,
	},
}

// TransitionPayload carries the action context: the evaluation time plus
// optional notes recorded on the quote.
type TransitionPayload struct {
	Now             time.Time
	ValidationNotes *string
	RejectionReason *string
}

// EffectiveStatus derives the current status from (status, expiryDate, now).
// A quote awaiting acceptance past its expiry date is expired; there is no
// background scheduler, so expiry is always evaluated on read.
func EffectiveStatus(q Quote, now time.Time) QuoteStatus {
	if q.Status == StatusAwaitingAcceptance && now.After(q.ExpiryDate) {
		return StatusExpired
	}
	return q.Status
}

// Transition applies action to the quote and returns the updated copy, or an
// *InvalidTransitionError with a reason code. The input quote is not mutated.
func Transition(q Quote, action Action, p TransitionPayload) (Quote, error) {
	from := EffectiveStatus(q, p.Now)

	next, ok := transitions[from][action]
	if !ok {
		reason := ReasonInvalidTransition
		switch {
		case from == StatusExpired && q.Status != StatusExpired:
			// Expired by time rather than by record: surface the cause.
			reason = ReasonExpired
		case from.Terminal():
			reason = ReasonAlreadyTerminal
		}
		return q, &InvalidTransitionError{From: from, Action: action, Reason: reason}
	}

	q.Status = next
	q.UpdatedAt = p.Now
	switch action {
	case ActionApprove:
		q.ValidationNotes = p.ValidationNotes
		at := p.Now
		q.ValidatedAt = &at
	case ActionReject:
		q.RejectionReason = p.RejectionReason
		at := p.Now
		q.RejectedAt = &at
	case ActionAccept:
		at := p.Now
		q.AcceptedAt = &at
	}
	return q, nil
}
