package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the negotiation state of a bid.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusCountered        Status = "COUNTERED"
	StatusCounterCountered Status = "COUNTER_COUNTERED"
	StatusAccepted         Status = "ACCEPTED"
	StatusRejected         Status = "REJECTED"
	StatusWithdrawn        Status = "WITHDRAWN"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// Role identifies which side of the negotiation an actor is on.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleFreelancer Role = "FREELANCER"
)

const (
	// MaxMessageLen bounds counter-offer messages.
	MaxMessageLen = 2000
	// MaxProposalLen bounds the original proposal text.
	MaxProposalLen = 8000
)

// Offer holds the terms of a counter-offer or counter-counter-offer.
type Offer struct {
	Amount           decimal.Decimal `json:"amount"`
	DeliveryTimeDays int             `json:"deliveryTimeDays"`
	Message          string          `json:"message"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Bid is the authoritative record of one negotiation between a client and a
// freelancer over a project engagement. Version increases by exactly one per
// accepted mutation and is the basis for optimistic concurrency.
type Bid struct {
	ID                  int64           `json:"-"`
	BidID               uuid.UUID       `json:"bidId"`
	ProjectID           uuid.UUID       `json:"projectId"`
	FreelancerID        uuid.UUID       `json:"freelancerId"`
	ClientID            uuid.UUID       `json:"clientId"`
	Amount              decimal.Decimal `json:"amount"`
	DeliveryTimeDays    int             `json:"deliveryTimeDays"`
	ProposalText        string          `json:"proposalText"`
	Status              Status          `json:"status"`
	CounterOffer        *Offer          `json:"counterOffer,omitempty"`
	CounterCounterOffer *Offer          `json:"counterCounterOffer,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// NewBid creates a pending bid at version 1.
func NewBid(projectID, freelancerID, clientID uuid.UUID, amount decimal.Decimal, deliveryTimeDays int, proposalText string) *Bid {
	now := time.Now().UTC()
	return &Bid{
		BidID:            uuid.New(),
		ProjectID:        projectID,
		FreelancerID:     freelancerID,
		ClientID:         clientID,
		Amount:           amount,
		DeliveryTimeDays: deliveryTimeDays,
		ProposalText:     proposalText,
		Status:           StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Terminal reports whether the bid admits no further transitions.
func (b *Bid) Terminal() bool {
	return b.Status.Terminal()
}

// ActorID returns the user id holding the given role on this bid.
func (b *Bid) ActorID(role Role) uuid.UUID {
	if role == RoleClient {
		return b.ClientID
	}
	return b.FreelancerID
}

// Counterpart returns the user id of the party opposite the given role.
func (b *Bid) Counterpart(role Role) uuid.UUID {
	if role == RoleClient {
		return b.FreelancerID
	}
	return b.ClientID
}

// CheckInvariants verifies the offer-presence invariants: CounterOffer is set
// iff status is COUNTERED, CounterCounterOffer is set iff status is
// COUNTER_COUNTERED.
func (b *Bid) CheckInvariants() error {
	if (b.Status == StatusCountered) != (b.CounterOffer != nil) {
		return &ConflictError{Reason: "counter offer presence does not match status"}
	}
	if (b.Status == StatusCounterCountered) != (b.CounterCounterOffer != nil) {
		return &ConflictError{Reason: "counter-counter offer presence does not match status"}
	}
	return nil
}

// ValidateTerms checks the numeric edge policy shared by bids and offers:
// amounts and delivery times must be strictly positive. Either direction of
// price movement is legal; negotiation is symmetric, not auction-constrained.
func ValidateTerms(amount decimal.Decimal, deliveryTimeDays int) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	if deliveryTimeDays <= 0 {
		return &ValidationError{Field: "deliveryTimeDays", Reason: "must be strictly positive"}
	}
	return nil
}
