package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

// MockRepository is a mock implementation of bid.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, b *bid.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *MockRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, freelancerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockRepository) ActiveExists(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, projectID, freelancerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) UpdateVersioned(ctx context.Context, b *bid.Bid, expectedVersion int64) error {
	args := m.Called(ctx, b, expectedVersion)
	return args.Error(0)
}
