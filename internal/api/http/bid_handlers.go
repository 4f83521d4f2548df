package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lancehub/lancehub/internal/application/dispatch"
	"github.com/lancehub/lancehub/internal/domain/bid"
)

type submitBidRequest struct {
	ProjectID        uuid.UUID       `json:"projectId"`
	Amount           decimal.Decimal `json:"amount"`
	DeliveryTimeDays int             `json:"deliveryTimeDays"`
	ProposalText     string          `json:"proposalText"`
}

// versionedRequest carries the caller's last-seen version for the
// compare-and-swap transition. Missing version defaults to 0 and fails the
// version check rather than bypassing it.
type versionedRequest struct {
	Version int64 `json:"version"`
}

type counterRequest struct {
	Version          int64           `json:"version"`
	Amount           decimal.Decimal `json:"amount"`
	DeliveryTimeDays int             `json:"deliveryTimeDays"`
	Message          string          `json:"message"`
}

func (s *Server) submitBid(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	var req submitBidRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	b, err := s.negotiationSvc.SubmitBid(r.Context(), req.ProjectID, au.UserID, req.Amount, req.DeliveryTimeDays, req.ProposalText)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) getBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid bid id")
		return
	}
	b, err := s.negotiationSvc.GetBid(r.Context(), bidID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) listMyBids(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	if au.Role != bid.RoleFreelancer {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "only freelancers have a bid list")
		return
	}
	bids, err := s.negotiationSvc.ListFreelancerBids(r.Context(), au.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": bids})
}

func (s *Server) counterOffer(w http.ResponseWriter, r *http.Request) {
	s.counterAction(w, r, func(ctx *actionCtx, req counterRequest) (*bid.Bid, error) {
		return s.negotiationSvc.CounterOffer(ctx.r.Context(), ctx.bidID, req.Version, ctx.actorID, req.Amount, req.DeliveryTimeDays, req.Message)
	})
}

func (s *Server) counterCounterOffer(w http.ResponseWriter, r *http.Request) {
	s.counterAction(w, r, func(ctx *actionCtx, req counterRequest) (*bid.Bid, error) {
		return s.negotiationSvc.CounterCounterOffer(ctx.r.Context(), ctx.bidID, req.Version, ctx.actorID, req.Amount, req.DeliveryTimeDays, req.Message)
	})
}

func (s *Server) acceptOriginal(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.AcceptOriginal)
}

func (s *Server) acceptCounterOffer(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.AcceptCounterOffer)
}

func (s *Server) rejectCounterOffer(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.RejectCounterOffer)
}

func (s *Server) acceptFinal(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.AcceptFinal)
}

func (s *Server) rejectBid(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.RejectBid)
}

func (s *Server) withdrawBid(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.negotiationSvc.WithdrawBid)
}

type actionCtx struct {
	r       *http.Request
	bidID   uuid.UUID
	actorID uuid.UUID
}

func (s *Server) counterAction(w http.ResponseWriter, r *http.Request, fn func(*actionCtx, counterRequest) (*bid.Bid, error)) {
	au := authUserFrom(r.Context())
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid bid id")
		return
	}
	var req counterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	b, err := fn(&actionCtx{r: r, bidID: bidID, actorID: au.UserID}, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) simpleAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, bidID uuid.UUID, version int64, actorID uuid.UUID) (*bid.Bid, error)) {
	au := authUserFrom(r.Context())
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid bid id")
		return
	}
	var req versionedRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	b, err := fn(r.Context(), bidID, req.Version, au.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

type filterRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) getNotificationFilter(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	expr, err := s.filters.Get(r.Context(), au.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	respondJSON(w, http.StatusOK, filterRequest{Expression: expr})
}

func (s *Server) setNotificationFilter(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Expression != "" {
		if err := dispatch.ValidateFilter(req.Expression); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}
	if err := s.filters.Set(r.Context(), au.UserID, req.Expression); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	respondJSON(w, http.StatusOK, filterRequest{Expression: req.Expression})
}
