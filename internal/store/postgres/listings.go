package postgres

import (
	"context"
	"database/sql"
	"time"

	"marketplace-verification/internal/models"
)

const listingColumns = `id, owner_id, title, price, status, views, favorites, visit_requests, created_at, updated_at`

type listingRepo struct {
	q *sql.Tx
}

func (r *listingRepo) Create(ctx context.Context, l *models.Listing) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.OwnerID, l.Title, l.Price, string(l.Status), l.Views, l.Favorites, l.VisitRequests,
		l.CreatedAt, l.UpdatedAt)
	return mapError("insert listing", err)
}

func (r *listingRepo) Get(ctx context.Context, id string) (*models.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
}

func (r *listingRepo) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
}

func (r *listingRepo) get(ctx context.Context, query, id string) (*models.Listing, error) {
	var l models.Listing
	var status string
	err := r.q.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.OwnerID, &l.Title, &l.Price, &status,
		&l.Views, &l.Favorites, &l.VisitRequests, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapError("get listing", err)
	}
	l.Status = models.ListingStatus(status)
	return &l, nil
}

func (r *listingRepo) UpdateStatus(ctx context.Context, id string, status models.ListingStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE listings SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return mapError("update listing status", err)
	}
	return expectOne("update listing status", res)
}
