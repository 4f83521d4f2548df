package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lancehub/lancehub/internal/domain/bid"
	"github.com/lancehub/lancehub/internal/domain/project"
)

// Service orchestrates bid negotiation: it validates an action against the
// state machine, persists the result under optimistic concurrency, and emits
// exactly one change event per successful transition.
type Service struct {
	bids     bid.Repository
	projects project.Repository
	emitter  bid.Emitter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a negotiation service.
func NewService(bids bid.Repository, projects project.Repository, emitter bid.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		bids:     bids,
		projects: projects,
		emitter:  emitter,
		logger:   logger.With().Str("service", "negotiation").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitBid creates a pending bid on an open project. At most one bid per
// (project, freelancer) pair may be in a non-terminal state.
func (s *Service) SubmitBid(ctx context.Context, projectID, freelancerID uuid.UUID, amount decimal.Decimal, deliveryTimeDays int, proposalText string) (*bid.Bid, error) {
	if err := bid.ValidateTerms(amount, deliveryTimeDays); err != nil {
		return nil, err
	}
	if proposalText == "" {
		return nil, &bid.ValidationError{Field: "proposalText", Reason: "is required"}
	}
	if len(proposalText) > bid.MaxProposalLen {
		return nil, &bid.ValidationError{Field: "proposalText", Reason: "exceeds maximum length"}
	}

	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return nil, project.ErrNotFound
	}
	if !p.Open() {
		return nil, &bid.ConflictError{Reason: "project is not open for bids"}
	}

	exists, err := s.bids.ActiveExists(ctx, projectID, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("check active bid: %w", err)
	}
	if exists {
		return nil, &bid.ConflictError{Reason: "an active bid already exists for this project"}
	}

	b := bid.NewBid(projectID, freelancerID, p.ClientID, amount, deliveryTimeDays, proposalText)
	if err := s.bids.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}

	s.logger.Info().
		Str("bid_id", b.BidID.String()).
		Str("project_id", projectID.String()).
		Str("freelancer_id", freelancerID.String()).
		Msg("bid submitted")

	s.emit(b, freelancerID, p.ClientID)
	return b, nil
}

// CounterOffer records the client's revision of a pending or
// counter-countered bid.
func (s *Service) CounterOffer(ctx context.Context, bidID uuid.UUID, version int64, clientID uuid.UUID, amount decimal.Decimal, deliveryTimeDays int, message string) (*bid.Bid, error) {
	p := &bid.Proposal{Amount: amount, DeliveryTimeDays: deliveryTimeDays, Message: message}
	return s.act(ctx, bidID, version, clientID, bid.RoleClient, bid.ActionCounter, p)
}

// AcceptOriginal accepts a pending bid at its original terms.
func (s *Service) AcceptOriginal(ctx context.Context, bidID uuid.UUID, version int64, clientID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, clientID, bid.RoleClient, bid.ActionAcceptOriginal, nil)
}

// AcceptCounterOffer accepts the client's counter at its terms.
func (s *Service) AcceptCounterOffer(ctx context.Context, bidID uuid.UUID, version int64, freelancerID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, freelancerID, bid.RoleFreelancer, bid.ActionAcceptCounter, nil)
}

// RejectCounterOffer declines the client's counter and returns the bid to its
// original pending terms.
func (s *Service) RejectCounterOffer(ctx context.Context, bidID uuid.UUID, version int64, freelancerID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, freelancerID, bid.RoleFreelancer, bid.ActionRejectCounter, nil)
}

// CounterCounterOffer records the freelancer's revision of the client's
// counter-offer.
func (s *Service) CounterCounterOffer(ctx context.Context, bidID uuid.UUID, version int64, freelancerID uuid.UUID, amount decimal.Decimal, deliveryTimeDays int, message string) (*bid.Bid, error) {
	p := &bid.Proposal{Amount: amount, DeliveryTimeDays: deliveryTimeDays, Message: message}
	return s.act(ctx, bidID, version, freelancerID, bid.RoleFreelancer, bid.ActionCounterCounter, p)
}

// AcceptFinal accepts the freelancer's counter-counter-offer at its terms.
func (s *Service) AcceptFinal(ctx context.Context, bidID uuid.UUID, version int64, clientID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, clientID, bid.RoleClient, bid.ActionAcceptFinal, nil)
}

// RejectBid rejects the bid outright.
func (s *Service) RejectBid(ctx context.Context, bidID uuid.UUID, version int64, clientID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, clientID, bid.RoleClient, bid.ActionReject, nil)
}

// WithdrawBid withdraws a pending bid.
func (s *Service) WithdrawBid(ctx context.Context, bidID uuid.UUID, version int64, freelancerID uuid.UUID) (*bid.Bid, error) {
	return s.act(ctx, bidID, version, freelancerID, bid.RoleFreelancer, bid.ActionWithdraw, nil)
}

// GetBid returns the authoritative bid record. This is the pull source the
// client reconciler uses to recover from missed push deliveries.
func (s *Service) GetBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bid.ErrNotFound
	}
	return b, nil
}

// ListProjectBids returns all bids on a project.
func (s *Service) ListProjectBids(ctx context.Context, projectID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByProject(ctx, projectID)
}

// ListFreelancerBids returns all bids submitted by a freelancer.
func (s *Service) ListFreelancerBids(ctx context.Context, freelancerID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByFreelancer(ctx, freelancerID)
}

// act runs a single transition end to end: identity check, stale-version
// check, pure transition, version-checked atomic write, event emission.
func (s *Service) act(ctx context.Context, bidID uuid.UUID, version int64, actorID uuid.UUID, role bid.Role, action bid.Action, p *bid.Proposal) (*bid.Bid, error) {
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, fmt.Errorf("load bid: %w", err)
	}
	if b == nil {
		return nil, bid.ErrNotFound
	}
	if b.ActorID(role) != actorID {
		return nil, &bid.ConflictError{Reason: "actor is not the " + string(role) + " on this bid"}
	}
	// Stale writes are rejected before the transition is even considered;
	// this is what prevents lost updates when both actors race.
	if b.Version != version {
		return nil, &bid.ConflictError{Reason: fmt.Sprintf("stale version %d, current is %d", version, b.Version)}
	}

	next, err := bid.Transition(*b, role, action, p, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.bids.UpdateVersioned(ctx, &next, version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_id", bidID.String()).
		Str("action", string(action)).
		Str("status", string(next.Status)).
		Int64("version", next.Version).
		Msg("bid transitioned")

	s.emit(&next, actorID, next.Counterpart(role))

	if next.Status == bid.StatusAccepted {
		s.markProjectInProgress(ctx, next.ProjectID)
	}
	return &next, nil
}

func (s *Service) emit(b *bid.Bid, fromActorID, toActorID uuid.UUID) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(bid.Changed{
		BidID:            b.BidID,
		ProjectID:        b.ProjectID,
		FromActorID:      fromActorID,
		ToActorID:        toActorID,
		NewStatus:        b.Status,
		Amount:           b.Amount,
		DeliveryTimeDays: b.DeliveryTimeDays,
		Version:          b.Version,
		OccurredAt:       b.UpdatedAt,
	})
}

// markProjectInProgress is the second of two independent, eventually
// consistent writes. A failure here leaves the bid accepted and the project
// reconcilable from the bid's terminal state, so it is only logged.
func (s *Service) markProjectInProgress(ctx context.Context, projectID uuid.UUID) {
	if err := s.projects.SetStatus(ctx, projectID, project.StatusInProgress); err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", projectID.String()).
			Msg("project status update failed, will reconcile from bid state")
	}
}
