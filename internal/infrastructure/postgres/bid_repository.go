package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

const bidColumns = `id, bid_id, project_id, freelancer_id, client_id, amount::text, delivery_time_days, proposal_text, status, counter_offer, counter_counter_offer, version, created_at, updated_at`

// BidRepository implements bid.Repository on Postgres. UpdateVersioned is a
// single compare-and-swap statement, which is what serializes concurrent
// transition attempts.
type BidRepository struct {
	pool *pgxpool.Pool
}

func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	counter, counterCounter, err := marshalOffers(b)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO bids
		(bid_id, project_id, freelancer_id, client_id, amount, delivery_time_days, proposal_text, status, counter_offer, counter_counter_offer, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, b.BidID, b.ProjectID, b.FreelancerID, b.ClientID, b.Amount.String(), b.DeliveryTimeDays, b.ProposalText, b.Status, counter, counterCounter, b.Version, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *BidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE bid_id=$1`, bidID)
	return scanBid(row)
}

func (r *BidRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*bid.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE project_id=$1 ORDER BY created_at ASC`, projectID)
}

func (r *BidRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*bid.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE freelancer_id=$1 ORDER BY created_at DESC`, freelancerID)
}

func (r *BidRepository) ActiveExists(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT 1 FROM bids
		WHERE project_id=$1 AND freelancer_id=$2
		  AND status IN ('PENDING', 'COUNTERED', 'COUNTER_COUNTERED')
		LIMIT 1
	`, projectID, freelancerID)
	var v int
	if err := row.Scan(&v); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *BidRepository) UpdateVersioned(ctx context.Context, b *bid.Bid, expectedVersion int64) error {
	counter, counterCounter, err := marshalOffers(b)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE bids
		SET amount=$1, delivery_time_days=$2, status=$3, counter_offer=$4, counter_counter_offer=$5, version=$6, updated_at=$7
		WHERE bid_id=$8 AND version=$9
	`, b.Amount.String(), b.DeliveryTimeDays, b.Status, counter, counterCounter, b.Version, b.UpdatedAt, b.BidID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &bid.ConflictError{Reason: fmt.Sprintf("bid %s changed since version %d", b.BidID, expectedVersion)}
	}
	return nil
}

func (r *BidRepository) list(ctx context.Context, query string, args ...interface{}) ([]*bid.Bid, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func marshalOffers(b *bid.Bid) ([]byte, []byte, error) {
	var counter, counterCounter []byte
	var err error
	if b.CounterOffer != nil {
		if counter, err = json.Marshal(b.CounterOffer); err != nil {
			return nil, nil, fmt.Errorf("marshal counter offer: %w", err)
		}
	}
	if b.CounterCounterOffer != nil {
		if counterCounter, err = json.Marshal(b.CounterCounterOffer); err != nil {
			return nil, nil, fmt.Errorf("marshal counter-counter offer: %w", err)
		}
	}
	return counter, counterCounter, nil
}

func scanBid(row pgx.Row) (*bid.Bid, error) {
	var b bid.Bid
	var amount string
	var counter, counterCounter []byte
	if err := row.Scan(&b.ID, &b.BidID, &b.ProjectID, &b.FreelancerID, &b.ClientID, &amount, &b.DeliveryTimeDays, &b.ProposalText, &b.Status, &counter, &counterCounter, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	b.Amount = amt
	if len(counter) > 0 {
		var o bid.Offer
		if err := json.Unmarshal(counter, &o); err != nil {
			return nil, fmt.Errorf("unmarshal counter offer: %w", err)
		}
		b.CounterOffer = &o
	}
	if len(counterCounter) > 0 {
		var o bid.Offer
		if err := json.Unmarshal(counterCounter, &o); err != nil {
			return nil, fmt.Errorf("unmarshal counter-counter offer: %w", err)
		}
		b.CounterCounterOffer = &o
	}
	return &b, nil
}
