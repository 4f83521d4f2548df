package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lancehub/lancehub/internal/domain/bid"
	domainProject "github.com/lancehub/lancehub/internal/domain/project"
)

// Service exposes the project store at its interface boundary. Project CRUD
// is deliberately thin; it exists so bids have something real to attach to.
type Service struct {
	projectRepo domainProject.Repository
	logger      zerolog.Logger
}

// NewService creates a project service.
func NewService(projectRepo domainProject.Repository, logger zerolog.Logger) *Service {
	return &Service{
		projectRepo: projectRepo,
		logger:      logger.With().Str("service", "project").Logger(),
	}
}

// Create opens a new project owned by clientID.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, title, budget string) (*domainProject.Project, error) {
	if title == "" {
		return nil, &bid.ValidationError{Field: "title", Reason: "is required"}
	}
	now := time.Now().UTC()
	p := &domainProject.Project{
		ProjectID: uuid.New(),
		ClientID:  clientID,
		Title:     title,
		Budget:    budget,
		Status:    domainProject.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("project_id", p.ProjectID.String()).Msg("project created")
	return p, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, projectID uuid.UUID) (*domainProject.Project, error) {
	p, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domainProject.ErrNotFound
	}
	return p, nil
}

// ListByClient returns a client's projects.
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domainProject.Project, error) {
	return s.projectRepo.ListByClient(ctx, clientID)
}
