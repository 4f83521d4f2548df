package bid

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for bids. UpdateVersioned is the single
// write path for transitions: it persists the full new state atomically and
// only if the stored version still equals expectedVersion.
type Repository interface {
	Create(ctx context.Context, b *Bid) error
	GetByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Bid, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*Bid, error)
	// ActiveExists reports whether a non-terminal bid already exists for the
	// (project, freelancer) pair.
	ActiveExists(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error)
	// UpdateVersioned returns a ConflictError when the compare-and-swap on
	// version finds no matching row.
	UpdateVersioned(ctx context.Context, b *Bid, expectedVersion int64) error
}
