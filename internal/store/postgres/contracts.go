package postgres

import (
	"context"
	"database/sql"

	"marketplace-verification/internal/models"

	"github.com/lib/pq"
)

const contractColumns = `id, listing_id, type, signatories, buyer_decision, note, valid_from, valid_until,
	signed_at, created_at, updated_at`

type contractRepo struct {
	q *sql.Tx
}

func (r *contractRepo) Create(ctx context.Context, c *models.Contract) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.ListingID, string(c.Type), pq.Array(signatories(c)), c.BuyerDecision, c.Note,
		c.ValidFrom, c.ValidUntil, c.SignedAt, c.CreatedAt, c.UpdatedAt)
	return mapError("insert contract", err)
}

func (r *contractRepo) Get(ctx context.Context, id string) (*models.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

func (r *contractRepo) GetForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (r *contractRepo) GetByListing(ctx context.Context, listingID string) (*models.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE listing_id = $1`, listingID)
}

func (r *contractRepo) get(ctx context.Context, query, arg string) (*models.Contract, error) {
	var c models.Contract
	var typ string
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.ListingID, &typ, pq.Array(&c.Signatories),
		&c.BuyerDecision, &c.Note, &c.ValidFrom, &c.ValidUntil, &c.SignedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError("get contract", err)
	}
	c.Type = models.ContractType(typ)
	return &c, nil
}

func (r *contractRepo) Update(ctx context.Context, c *models.Contract) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE contracts
		SET signatories = $2, buyer_decision = $3, note = $4, signed_at = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, pq.Array(signatories(c)), c.BuyerDecision, c.Note, c.SignedAt, c.UpdatedAt)
	if err != nil {
		return mapError("update contract", err)
	}
	return expectOne("update contract", res)
}

func (r *contractRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return mapError("delete contract", err)
	}
	return expectOne("delete contract", res)
}

// signatories never hands a nil slice to the driver; the column is NOT NULL.
func signatories(c *models.Contract) []string {
	if c.Signatories == nil {
		return []string{}
	}
	return c.Signatories
}
