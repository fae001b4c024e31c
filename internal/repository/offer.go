package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/fulfillment/internal/domain/offer"
)

const (
	findOfferSQL = `SELECT id, discount_type, discount_value, start_date, end_date
		FROM offers WHERE id = $1`

	upsertOfferSQL = `INSERT INTO offers (id, discount_type, discount_value, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`
)

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// FindOffer returns the offer with the given id.
func (r *OfferRepository) FindOffer(ctx context.Context, id int64) (*offer.Offer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findOfferSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding offer %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offer.ErrNotFound
		}
		return nil, fmt.Errorf("finding offer %d: %w", id, err)
	}
	return &o, nil
}

// Upsert inserts o or overwrites the offer with the same id.
func (r *OfferRepository) Upsert(ctx context.Context, o *offer.Offer) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertOfferSQL,
		o.ID, string(o.DiscountType), o.DiscountValue, o.StartDate, o.EndDate,
	)
	if err != nil {
		return fmt.Errorf("upserting offer %d: %w", o.ID, err)
	}
	return nil
}

// UpsertBatch upserts offers in a single round trip.
func (r *OfferRepository) UpsertBatch(ctx context.Context, offers []offer.Offer) error {
	batch := &pgx.Batch{}
	for i := range offers {
		o := &offers[i]
		batch.Queue(upsertOfferSQL, o.ID, string(o.DiscountType), o.DiscountValue, o.StartDate, o.EndDate)
	}
	if err := conn(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d offers: %w", len(offers), err)
	}
	return nil
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o  offer.Offer
		dt string
	)
	err := row.Scan(&o.ID, &dt, &o.DiscountValue, &o.StartDate, &o.EndDate)
	o.DiscountType = offer.DiscountType(dt)
	return o, err
}
