package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Changed is emitted exactly once per successful transition and addressed to
// the party that did not act. Delivery is best-effort; the pull path is the
// correctness backstop.
type Changed struct {
	BidID            uuid.UUID       `json:"bidId"`
	ProjectID        uuid.UUID       `json:"projectId"`
	FromActorID      uuid.UUID       `json:"fromActorId"`
	ToActorID        uuid.UUID       `json:"toActorId"`
	NewStatus        Status          `json:"newStatus"`
	Amount           decimal.Decimal `json:"amount"`
	DeliveryTimeDays int             `json:"deliveryTimeDays"`
	Version          int64           `json:"version"`
	OccurredAt       time.Time       `json:"occurredAt"`
}

// Emitter receives change events. Implementations must not block the caller.
type Emitter interface {
	Emit(ev Changed)
}
