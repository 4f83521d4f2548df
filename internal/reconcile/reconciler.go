package reconcile

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

// Source is the authoritative pull path. The reconciler uses it both to
// resolve push events into full records and to recover from missed pushes.
type Source interface {
	FetchBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error)
	FetchProjectBids(ctx context.Context, projectID uuid.UUID) ([]*bid.Bid, error)
}

// Cache is the durable local fallback store, scoped per (projectID, actorID).
// It only ever mirrors previously-confirmed authoritative state.
type Cache interface {
	PutSnapshot(projectID, actorID uuid.UUID, b *bid.Bid) error
	GetSnapshots(projectID, actorID uuid.UUID) ([]*bid.Bid, error)
	MarkSeen(bidID uuid.UUID, version int64) error
	Seen(bidID uuid.UUID, version int64) (bool, error)
}

// View is the merged local state of one bid as this actor last confirmed it.
type View struct {
	Bid             bid.Bid
	LastSeenVersion int64
	// Stale marks a view rendered from the durable cache after an
	// authoritative fetch failed.
	Stale bool
}

// PromptFunc is called at most once per (bid, version) when a new offer
// should interrupt the user.
type PromptFunc func(v View)

// Reconciler merges pushed events and pull responses into a per-bid local
// view without regressing or double-surfacing state. It tolerates duplicate
// and out-of-order delivery: anything at or below the last seen version is
// discarded, and a durable (bidID, version) marker keeps re-deliveries from
// re-interrupting the user.
type Reconciler struct {
	mu       sync.Mutex
	actorID  uuid.UUID
	source   Source
	cache    Cache
	onPrompt PromptFunc
	views    map[uuid.UUID]*View
	inflight map[uuid.UUID]struct{}
	logger   zerolog.Logger
}

// New creates a reconciler for one actor. onPrompt may be nil.
func New(actorID uuid.UUID, source Source, cache Cache, onPrompt PromptFunc, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		actorID:  actorID,
		source:   source,
		cache:    cache,
		onPrompt: onPrompt,
		views:    make(map[uuid.UUID]*View),
		inflight: make(map[uuid.UUID]struct{}),
		logger:   logger.With().Str("component", "reconciler").Str("actor_id", actorID.String()).Logger(),
	}
}

// HandleEvent consumes one pushed event. Events addressed to another actor
// (the broadcast route carries those) are discarded. A fresh event triggers
// an authoritative fetch; the event itself is never applied speculatively,
// so the local view and durable cache only ever hold server-confirmed state.
// A failed fetch is non-fatal: the next pull recovers the same state.
func (r *Reconciler) HandleEvent(ctx context.Context, ev bid.Changed) {
	if ev.ToActorID != r.actorID {
		return
	}
	r.mu.Lock()
	if v, ok := r.views[ev.BidID]; ok && ev.Version <= v.LastSeenVersion {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	b, err := r.source.FetchBid(ctx, ev.BidID)
	if err != nil {
		r.logger.Debug().Err(err).
			Str("bid_id", ev.BidID.String()).
			Int64("version", ev.Version).
			Msg("fetch after push failed, deferring to pull")
		return
	}
	r.Apply(b)
}

// Apply merges one authoritative record into the local view. It returns true
// when the record was fresh and surfaced a new offer prompt.
func (r *Reconciler) Apply(b *bid.Bid) bool {
	r.mu.Lock()
	v, ok := r.views[b.BidID]
	if ok && b.Version <= v.LastSeenVersion {
		// Stale or duplicate: never regress visible state. A cached copy at
		// the same version may still clear a staleness flag.
		if b.Version == v.LastSeenVersion && v.Stale {
			v.Stale = false
		}
		r.mu.Unlock()
		return false
	}
	r.views[b.BidID] = &View{Bid: *b, LastSeenVersion: b.Version}
	r.mu.Unlock()

	if err := r.cache.PutSnapshot(b.ProjectID, r.actorID, b); err != nil {
		// Durable write failure never blocks the in-memory view.
		r.logger.Warn().Err(err).Str("bid_id", b.BidID.String()).Msg("cache write failed")
	}

	if b.Status != bid.StatusCountered && b.Status != bid.StatusCounterCountered {
		return false
	}
	seen, err := r.cache.Seen(b.BidID, b.Version)
	if err != nil {
		r.logger.Warn().Err(err).Str("bid_id", b.BidID.String()).Msg("seen marker read failed")
		return false
	}
	if seen {
		return false
	}
	if err := r.cache.MarkSeen(b.BidID, b.Version); err != nil {
		r.logger.Warn().Err(err).Str("bid_id", b.BidID.String()).Msg("seen marker write failed")
	}
	if r.onPrompt != nil {
		r.onPrompt(View{Bid: *b, LastSeenVersion: b.Version})
	}
	return true
}

// Refresh pulls all bids for a project and merges them. When the
// authoritative fetch fails it falls back to the durable cache, rendering
// the last confirmed snapshots with a staleness indicator. It never
// fabricates a transition locally.
func (r *Reconciler) Refresh(ctx context.Context, projectID uuid.UUID) error {
	bids, err := r.source.FetchProjectBids(ctx, projectID)
	if err != nil {
		r.logger.Warn().Err(err).Str("project_id", projectID.String()).Msg("authoritative fetch failed, using cached snapshots")
		return r.fallback(projectID)
	}
	for _, b := range bids {
		r.Apply(b)
	}
	return nil
}

func (r *Reconciler) fallback(projectID uuid.UUID) error {
	cached, err := r.cache.GetSnapshots(projectID, r.actorID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range cached {
		v, ok := r.views[b.BidID]
		if ok && b.Version < v.LastSeenVersion {
			continue // never regress below what was already confirmed live
		}
		if ok && b.Version == v.LastSeenVersion {
			v.Stale = true
			continue
		}
		r.views[b.BidID] = &View{Bid: *b, LastSeenVersion: b.Version, Stale: true}
	}
	return nil
}

// View returns the current merged view of a bid.
func (r *Reconciler) View(bidID uuid.UUID) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[bidID]
	if !ok {
		return View{}, false
	}
	return *v, true
}

// Views returns the merged views of all tracked bids.
func (r *Reconciler) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, *v)
	}
	return out
}

// TryBegin claims the single in-flight action slot for a bid. It returns
// false while a previous action on the same bid is still outstanding, so a
// user cannot issue two versions of the same logical action.
func (r *Reconciler) TryBegin(bidID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[bidID]; busy {
		return false
	}
	r.inflight[bidID] = struct{}{}
	return true
}

// End releases the in-flight slot claimed by TryBegin.
func (r *Reconciler) End(bidID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, bidID)
}
