package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents project lifecycle status. The negotiation engine only
// cares about OPEN (bids may be submitted) and IN_PROGRESS (a bid was
// accepted); the rest of the lifecycle is owned elsewhere.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var ErrNotFound = errors.New("project not found")

// Project is the external collaborator entity, referenced by the negotiation
// engine only for validity checks and the eventually-consistent status write
// after a bid is accepted.
type Project struct {
	ID        int64     `json:"-"`
	ProjectID uuid.UUID `json:"projectId"`
	ClientID  uuid.UUID `json:"clientId"`
	Title     string    `json:"title"`
	Budget    string    `json:"budget,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open reports whether the project still accepts bids.
func (p *Project) Open() bool {
	return p.Status == StatusOpen
}

// Repository defines the boundary to the project store.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, projectID uuid.UUID) (*Project, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Project, error)
	// SetStatus is the independent, eventually-consistent write issued after a
	// bid reaches a terminal ACCEPTED state. It is never part of the bid
	// transition's atomic write.
	SetStatus(ctx context.Context, projectID uuid.UUID, status Status) error
}
