package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appAuth "github.com/lancehub/lancehub/internal/application/auth"
	appNegotiation "github.com/lancehub/lancehub/internal/application/negotiation"
	appProject "github.com/lancehub/lancehub/internal/application/project"
	"github.com/lancehub/lancehub/internal/domain/bid"
	"github.com/lancehub/lancehub/internal/domain/project"
	"github.com/lancehub/lancehub/internal/infrastructure/sse"
)

// FilterStore is the read/write surface for notification filter preferences.
type FilterStore interface {
	Get(ctx context.Context, userID uuid.UUID) (string, error)
	Set(ctx context.Context, userID uuid.UUID, expression string) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	negotiationSvc      *appNegotiation.Service
	projectSvc          *appProject.Service
	authSvc             *appAuth.Service
	filters             FilterStore
	sseHub              *sse.Hub
	sessionCookieName   string
	sessionCookieSecure bool
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	projectSvc *appProject.Service,
	authSvc *appAuth.Service,
	filters FilterStore,
	sseHub *sse.Hub,
	sessionCookieName string,
	sessionCookieSecure bool,
) *Server {
	return &Server{
		negotiationSvc:      negotiationSvc,
		projectSvc:          projectSvc,
		authSvc:             authSvc,
		filters:             filters,
		sseHub:              sseHub,
		sessionCookieName:   sessionCookieName,
		sessionCookieSecure: sessionCookieSecure,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/projects", func(r chi.Router) {
				r.With(s.requireRole(bid.RoleClient)).Post("/", s.createProject)
				r.Get("/", s.listMyProjects)
				r.Get("/{projectId}", s.getProject)
				r.Get("/{projectId}/bids", s.listProjectBids)
			})

			r.Route("/bids", func(r chi.Router) {
				r.With(s.requireRole(bid.RoleFreelancer)).Post("/", s.submitBid)
				r.Get("/", s.listMyBids)
				r.Get("/{bidId}", s.getBid)

				r.With(s.requireRole(bid.RoleClient)).Post("/{bidId}/counter", s.counterOffer)
				r.With(s.requireRole(bid.RoleClient)).Post("/{bidId}/accept", s.acceptOriginal)
				r.With(s.requireRole(bid.RoleClient)).Post("/{bidId}/accept-final", s.acceptFinal)
				r.With(s.requireRole(bid.RoleClient)).Post("/{bidId}/reject", s.rejectBid)

				r.With(s.requireRole(bid.RoleFreelancer)).Post("/{bidId}/accept-counter", s.acceptCounterOffer)
				r.With(s.requireRole(bid.RoleFreelancer)).Post("/{bidId}/reject-counter", s.rejectCounterOffer)
				r.With(s.requireRole(bid.RoleFreelancer)).Post("/{bidId}/counter-counter", s.counterCounterOffer)
				r.With(s.requireRole(bid.RoleFreelancer)).Post("/{bidId}/withdraw", s.withdrawBid)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/filter", s.getNotificationFilter)
				r.Put("/filter", s.setNotificationFilter)
			})

			r.Get("/stream", s.streamEndpoint)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps the negotiation error taxonomy onto HTTP. A
// conflict response tells the caller to refresh before retrying, since a
// conflict means their view was stale.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case bid.IsValidation(err):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case bid.IsConflict(err):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error()+"; refresh the bid and retry")
	case errors.Is(err, bid.ErrNotFound), errors.Is(err, project.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no longer available")
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
