package dispatch

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lancehub/lancehub/internal/domain/bid"
	"github.com/lancehub/lancehub/internal/infrastructure/sse"
)

const eventBidChanged = "bid.changed"

// Pusher is the subset of the SSE hub the dispatcher needs.
type Pusher interface {
	BroadcastToUser(userID string, message *sse.Message) int
	BroadcastToTopic(topic string, message *sse.Message) int
}

// FilterStore supplies a user's notification filter expression, if any.
type FilterStore interface {
	Get(ctx context.Context, userID uuid.UUID) (string, error)
}

// Dispatcher delivers bid change events to the counterpart's active sessions
// over two redundant routes: a direct per-user channel and a per-project
// broadcast topic filtered client-side by addressee. Delivery is
// fire-and-forget; there are no retries and nothing is persisted. The
// reconciler's version and marker dedup absorbs the route duplication, and
// the pull path covers anything dropped here.
type Dispatcher struct {
	hub     Pusher
	filters FilterStore
	events  chan bid.Changed
	logger  zerolog.Logger
}

// New creates a dispatcher with the given event buffer size.
func New(hub Pusher, filters FilterStore, bufferSize int, logger zerolog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		hub:     hub,
		filters: filters,
		events:  make(chan bid.Changed, bufferSize),
		logger:  logger.With().Str("service", "dispatch").Logger(),
	}
}

// Emit hands an event to the dispatch loop. It never blocks the negotiation
// service: when the buffer is full the event is dropped and the counterpart
// discovers the state on its next pull.
func (d *Dispatcher) Emit(ev bid.Changed) {
	select {
	case d.events <- ev:
	default:
		d.logger.Debug().
			Str("bid_id", ev.BidID.String()).
			Int64("version", ev.Version).
			Msg("event buffer full, dropping push")
	}
}

// Run consumes emitted events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev bid.Changed) {
	if d.muted(ctx, ev) {
		d.logger.Debug().
			Str("bid_id", ev.BidID.String()).
			Str("to", ev.ToActorID.String()).
			Msg("push suppressed by user filter")
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		d.logger.Warn().Err(err).Str("bid_id", ev.BidID.String()).Msg("failed to marshal event")
		return
	}
	msg := sse.NewMessage(eventBidChanged, data)

	direct := d.hub.BroadcastToUser(ev.ToActorID.String(), msg)
	topic := d.hub.BroadcastToTopic("project:"+ev.ProjectID.String(), msg)

	if direct == 0 && topic == 0 {
		// No connected session. Non-fatal: the pull path reconciles.
		d.logger.Debug().
			Str("bid_id", ev.BidID.String()).
			Str("to", ev.ToActorID.String()).
			Int64("version", ev.Version).
			Msg("no active session, event dropped")
		return
	}
	d.logger.Debug().
		Str("bid_id", ev.BidID.String()).
		Int64("version", ev.Version).
		Int("direct", direct).
		Int("topic", topic).
		Msg("event pushed")
}

// muted evaluates the recipient's filter expression against the event. Any
// filter failure falls back to delivering; suppression is an optimization,
// never a correctness mechanism.
func (d *Dispatcher) muted(ctx context.Context, ev bid.Changed) bool {
	if d.filters == nil {
		return false
	}
	expr, err := d.filters.Get(ctx, ev.ToActorID)
	if err != nil || expr == "" {
		return false
	}
	m, err := EvalFilter(expr, ev)
	if err != nil {
		d.logger.Warn().Err(err).
			Str("user_id", ev.ToActorID.String()).
			Msg("bad notification filter, delivering anyway")
		return false
	}
	return m
}
