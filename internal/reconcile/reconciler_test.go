package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

type fakeSource struct {
	mu      sync.Mutex
	bids    map[uuid.UUID]*bid.Bid
	fetches int
	fail    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{bids: make(map[uuid.UUID]*bid.Bid)}
}

func (f *fakeSource) put(b *bid.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bids[b.BidID] = &cp
}

func (f *fakeSource) FetchBid(_ context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fail {
		return nil, errors.New("service unavailable")
	}
	b, ok := f.bids[bidID]
	if !ok {
		return nil, bid.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeSource) FetchProjectBids(_ context.Context, projectID uuid.UUID) ([]*bid.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fail {
		return nil, errors.New("service unavailable")
	}
	var out []*bid.Bid
	for _, b := range f.bids {
		if b.ProjectID == projectID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func testCache(t *testing.T) *BoltCache {
	t.Helper()
	cache, err := OpenBoltCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func counteredBid(clientID, freelancerID uuid.UUID) *bid.Bid {
	b := bid.NewBid(uuid.New(), freelancerID, clientID, decimal.NewFromInt(500), 10, "pitch")
	next, err := bid.Transition(*b, bid.RoleClient, bid.ActionCounter,
		&bid.Proposal{Amount: decimal.NewFromInt(400), DeliveryTimeDays: 7, Message: "tight budget"},
		time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return &next
}

type promptCounter struct {
	mu      sync.Mutex
	prompts []View
}

func (p *promptCounter) prompt(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, v)
}

func (p *promptCounter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func TestApplyIdempotent(t *testing.T) {
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	prompts := &promptCounter{}
	r := New(freelancerID, newFakeSource(), testCache(t), prompts.prompt, zerolog.Nop())

	assert.True(t, r.Apply(b), "first apply should surface the offer")
	assert.False(t, r.Apply(b), "re-applying the same version must be a no-op")
	assert.Equal(t, 1, prompts.count(), "re-delivery must not re-prompt")

	v, ok := r.View(b.BidID)
	require.True(t, ok)
	assert.Equal(t, b.Version, v.LastSeenVersion)
}

func TestApplyNeverRegresses(t *testing.T) {
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	r := New(freelancerID, newFakeSource(), testCache(t), nil, zerolog.Nop())

	r.Apply(b)

	older := *b
	older.Version = b.Version - 1
	older.Status = bid.StatusPending
	older.CounterOffer = nil
	r.Apply(&older)

	v, ok := r.View(b.BidID)
	require.True(t, ok)
	assert.Equal(t, b.Version, v.LastSeenVersion)
	assert.Equal(t, bid.StatusCountered, v.Bid.Status)
}

func TestMarkerSurvivesRestart(t *testing.T) {
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	cache := testCache(t)

	prompts1 := &promptCounter{}
	r1 := New(freelancerID, newFakeSource(), cache, prompts1.prompt, zerolog.Nop())
	assert.True(t, r1.Apply(b))
	assert.Equal(t, 1, prompts1.count())

	// Same durable cache, fresh reconciler: the marker must suppress the
	// prompt while the view is still updated.
	prompts2 := &promptCounter{}
	r2 := New(freelancerID, newFakeSource(), cache, prompts2.prompt, zerolog.Nop())
	assert.False(t, r2.Apply(b))
	assert.Equal(t, 0, prompts2.count())

	v, ok := r2.View(b.BidID)
	require.True(t, ok)
	assert.Equal(t, bid.StatusCountered, v.Bid.Status)
}

func TestHandleEventPullsThrough(t *testing.T) {
	ctx := context.Background()
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	source := newFakeSource()
	source.put(b)

	prompts := &promptCounter{}
	r := New(freelancerID, source, testCache(t), prompts.prompt, zerolog.Nop())

	ev := bid.Changed{
		BidID:     b.BidID,
		ProjectID: b.ProjectID,
		ToActorID: freelancerID,
		NewStatus: b.Status,
		Version:   b.Version,
	}
	r.HandleEvent(ctx, ev)
	require.Equal(t, 1, source.fetchCount())
	require.Equal(t, 1, prompts.count())

	// The redundant broadcast route delivers the same event again: dedup by
	// version means no second fetch and no second prompt.
	r.HandleEvent(ctx, ev)
	assert.Equal(t, 1, source.fetchCount())
	assert.Equal(t, 1, prompts.count())
}

func TestHandleEventIgnoresOtherAddressees(t *testing.T) {
	ctx := context.Background()
	freelancerID := uuid.New()
	source := newFakeSource()
	r := New(freelancerID, source, testCache(t), nil, zerolog.Nop())

	r.HandleEvent(ctx, bid.Changed{BidID: uuid.New(), ToActorID: uuid.New(), Version: 2})
	assert.Equal(t, 0, source.fetchCount())
}

func TestDroppedPushRecoveredByPull(t *testing.T) {
	// The push never arrives (no active session). A later pull returns the
	// same countered state and the offer is surfaced exactly once.
	ctx := context.Background()
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	source := newFakeSource()
	source.put(b)

	prompts := &promptCounter{}
	r := New(freelancerID, source, testCache(t), prompts.prompt, zerolog.Nop())

	require.NoError(t, r.Refresh(ctx, b.ProjectID))
	assert.Equal(t, 1, prompts.count())

	// Pulling again must not re-surface.
	require.NoError(t, r.Refresh(ctx, b.ProjectID))
	assert.Equal(t, 1, prompts.count())
}

func TestRefreshFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	source := newFakeSource()
	source.put(b)
	cache := testCache(t)

	r := New(freelancerID, source, cache, nil, zerolog.Nop())
	require.NoError(t, r.Refresh(ctx, b.ProjectID))

	v, ok := r.View(b.BidID)
	require.True(t, ok)
	assert.False(t, v.Stale)

	// Service goes down; the cached snapshot is rendered with a staleness
	// indicator, never a fabricated transition.
	source.fail = true
	require.NoError(t, r.Refresh(ctx, b.ProjectID))

	v, ok = r.View(b.BidID)
	require.True(t, ok)
	assert.True(t, v.Stale)
	assert.Equal(t, bid.StatusCountered, v.Bid.Status)
	assert.Equal(t, b.Version, v.LastSeenVersion)

	// Recovery clears the flag.
	source.fail = false
	require.NoError(t, r.Refresh(ctx, b.ProjectID))
	v, _ = r.View(b.BidID)
	assert.False(t, v.Stale)
}

func TestFallbackWithColdStart(t *testing.T) {
	// A fresh reconciler (client restarted offline) renders cached
	// snapshots even with no in-memory views.
	ctx := context.Background()
	freelancerID := uuid.New()
	b := counteredBid(uuid.New(), freelancerID)
	cache := testCache(t)
	require.NoError(t, cache.PutSnapshot(b.ProjectID, freelancerID, b))

	source := newFakeSource()
	source.fail = true
	r := New(freelancerID, source, cache, nil, zerolog.Nop())
	require.NoError(t, r.Refresh(ctx, b.ProjectID))

	v, ok := r.View(b.BidID)
	require.True(t, ok)
	assert.True(t, v.Stale)
	assert.Equal(t, b.Version, v.LastSeenVersion)
}

func TestInFlightGuard(t *testing.T) {
	r := New(uuid.New(), newFakeSource(), testCache(t), nil, zerolog.Nop())
	bidID := uuid.New()

	require.True(t, r.TryBegin(bidID))
	assert.False(t, r.TryBegin(bidID), "second action on the same bid must be refused while one is outstanding")
	assert.True(t, r.TryBegin(uuid.New()), "other bids are unaffected")

	r.End(bidID)
	assert.True(t, r.TryBegin(bidID))
}

func TestBoltCacheRoundTrip(t *testing.T) {
	cache := testCache(t)
	projectID := uuid.New()
	actorID := uuid.New()
	b := counteredBid(uuid.New(), actorID)
	b.ProjectID = projectID

	require.NoError(t, cache.PutSnapshot(projectID, actorID, b))
	got, err := cache.GetSnapshots(projectID, actorID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.BidID, got[0].BidID)
	assert.Equal(t, b.Version, got[0].Version)
	assert.True(t, got[0].Amount.Equal(b.Amount))
	require.NotNil(t, got[0].CounterOffer)
	assert.True(t, got[0].CounterOffer.Amount.Equal(decimal.NewFromInt(400)))

	// Scope isolation.
	other, err := cache.GetSnapshots(projectID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)

	// An older snapshot never overwrites a newer confirmed one.
	older := *b
	older.Version = b.Version - 1
	require.NoError(t, cache.PutSnapshot(projectID, actorID, &older))
	got, err = cache.GetSnapshots(projectID, actorID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.Version, got[0].Version)
}

func TestBoltCacheSeenMarkers(t *testing.T) {
	cache := testCache(t)
	bidID := uuid.New()

	seen, err := cache.Seen(bidID, 2)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.MarkSeen(bidID, 2))
	seen, err = cache.Seen(bidID, 2)
	require.NoError(t, err)
	assert.True(t, seen)

	// Versions are independent markers.
	seen, err = cache.Seen(bidID, 3)
	require.NoError(t, err)
	assert.False(t, seen)
}
