package bid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action represents a negotiation action issued by one of the two parties.
type Action string

const (
	ActionCounter        Action = "COUNTER"
	ActionAcceptOriginal Action = "ACCEPT_ORIGINAL"
	ActionReject         Action = "REJECT"
	ActionWithdraw       Action = "WITHDRAW"
	ActionAcceptCounter  Action = "ACCEPT_COUNTER"
	ActionRejectCounter  Action = "REJECT_COUNTER"
	ActionCounterCounter Action = "COUNTER_COUNTER"
	ActionAcceptFinal    Action = "ACCEPT_FINAL"
)

// Proposal carries the terms of a counter or counter-counter action.
type Proposal struct {
	Amount           decimal.Decimal
	DeliveryTimeDays int
	Message          string
}

// transitions maps each non-terminal state to the actions legal from it and
// the role permitted to issue each one.
var transitions = map[Status]map[Action]Role{
	StatusPending: {
		ActionCounter:        RoleClient,
		ActionAcceptOriginal: RoleClient,
		ActionReject:         RoleClient,
		ActionWithdraw:       RoleFreelancer,
	},
	StatusCountered: {
		ActionAcceptCounter:  RoleFreelancer,
		ActionRejectCounter:  RoleFreelancer,
		ActionCounterCounter: RoleFreelancer,
	},
	StatusCounterCountered: {
		ActionAcceptFinal: RoleClient,
		ActionCounter:     RoleClient,
		ActionReject:      RoleClient,
	},
}

// RequiresProposal reports whether the action carries new terms.
func (a Action) RequiresProposal() bool {
	return a == ActionCounter || a == ActionCounterCounter
}

// Transition is the pure transition function of the negotiation. It applies
// action to a copy of b and returns the resulting state with the version
// bumped by one, or a ConflictError if the action is not legal from the
// current state for the given actor, or a ValidationError if the proposal
// terms are malformed. b itself is never mutated.
func Transition(b Bid, actor Role, action Action, p *Proposal, now time.Time) (Bid, error) {
	if b.Terminal() {
		return Bid{}, &ConflictError{Reason: "bid is in terminal state " + string(b.Status)}
	}
	required, ok := transitions[b.Status][action]
	if !ok {
		return Bid{}, &ConflictError{Reason: "action " + string(action) + " is not legal from state " + string(b.Status)}
	}
	if actor != required {
		return Bid{}, &ConflictError{Reason: "action " + string(action) + " requires role " + string(required)}
	}

	if action.RequiresProposal() {
		if p == nil {
			return Bid{}, &ValidationError{Field: "proposal", Reason: "terms are required"}
		}
		if err := ValidateTerms(p.Amount, p.DeliveryTimeDays); err != nil {
			return Bid{}, err
		}
		if len(p.Message) > MaxMessageLen {
			return Bid{}, &ValidationError{Field: "message", Reason: "exceeds maximum length"}
		}
	}

	next := b
	switch action {
	case ActionCounter:
		// From COUNTER_COUNTERED this replaces the previous round: the old
		// counter-counter-offer is discarded below.
		next.Status = StatusCountered
		next.CounterOffer = &Offer{
			Amount:           p.Amount,
			DeliveryTimeDays: p.DeliveryTimeDays,
			Message:          p.Message,
			CreatedAt:        now,
		}
	case ActionCounterCounter:
		next.Status = StatusCounterCountered
		next.CounterCounterOffer = &Offer{
			Amount:           p.Amount,
			DeliveryTimeDays: p.DeliveryTimeDays,
			Message:          p.Message,
			CreatedAt:        now,
		}
	case ActionAcceptOriginal:
		next.Status = StatusAccepted
	case ActionAcceptCounter:
		next.Amount = b.CounterOffer.Amount
		next.DeliveryTimeDays = b.CounterOffer.DeliveryTimeDays
		next.Status = StatusAccepted
	case ActionAcceptFinal:
		next.Amount = b.CounterCounterOffer.Amount
		next.DeliveryTimeDays = b.CounterCounterOffer.DeliveryTimeDays
		next.Status = StatusAccepted
	case ActionRejectCounter:
		next.Status = StatusPending
	case ActionReject:
		next.Status = StatusRejected
	case ActionWithdraw:
		next.Status = StatusWithdrawn
	}

	// Offer presence always matches the resulting status.
	if next.Status != StatusCountered {
		next.CounterOffer = nil
	}
	if next.Status != StatusCounterCountered {
		next.CounterCounterOffer = nil
	}

	next.Version = b.Version + 1
	next.UpdatedAt = now
	return next, nil
}
