package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/lancehub/lancehub/internal/domain/project"
)

// MockRepository is a mock implementation of project.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *project.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, projectID uuid.UUID) (*project.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Project), args.Error(1)
}

func (m *MockRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*project.Project, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*project.Project), args.Error(1)
}

func (m *MockRepository) SetStatus(ctx context.Context, projectID uuid.UUID, status project.Status) error {
	args := m.Called(ctx, projectID, status)
	return args.Error(0)
}
