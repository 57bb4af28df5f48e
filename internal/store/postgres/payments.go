package postgres

import (
	"context"
	"database/sql"

	"marketplace-verification/internal/models"
)

const paymentColumns = `id, buyer_id, listing_id, seller_id, amount, channel, intent, evidence, status,
	read, rejection_reason, submitted_at, decided_at, paid_out_at`

type paymentRepo struct {
	q *sql.Tx
}

func (r *paymentRepo) Create(ctx context.Context, p *models.PaymentRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_requests (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.BuyerID, p.ListingID, p.SellerID, p.Amount, string(p.Channel), string(p.Intent), p.Evidence,
		string(p.Status), p.Read, p.RejectionReason, p.SubmittedAt, p.DecidedAt, p.PaidOutAt)
	return mapError("insert payment request", err)
}

func (r *paymentRepo) Get(ctx context.Context, id string) (*models.PaymentRequest, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id)
}

func (r *paymentRepo) GetForUpdate(ctx context.Context, id string) (*models.PaymentRequest, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *paymentRepo) get(ctx context.Context, query, id string) (*models.PaymentRequest, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError("get payment request", err)
	}
	return p, nil
}

func (r *paymentRepo) ExistsFor(ctx context.Context, listingID, buyerID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM payment_requests WHERE listing_id = $1 AND buyer_id = $2)
	`, listingID, buyerID).Scan(&exists)
	if err != nil {
		return false, mapError("check payment request", err)
	}
	return exists, nil
}

func (r *paymentRepo) Update(ctx context.Context, p *models.PaymentRequest) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payment_requests
		SET status = $2, read = $3, rejection_reason = $4, decided_at = $5, paid_out_at = $6
		WHERE id = $1
	`, p.ID, string(p.Status), p.Read, p.RejectionReason, p.DecidedAt, p.PaidOutAt)
	if err != nil {
		return mapError("update payment request", err)
	}
	return expectOne("update payment request", res)
}

func (r *paymentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM payment_requests WHERE id = $1`, id)
	if err != nil {
		return mapError("delete payment request", err)
	}
	return expectOne("delete payment request", res)
}

func (r *paymentRepo) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.PaymentRequest, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests
		WHERE status = $1 ORDER BY submitted_at, id`, string(status))
	if err != nil {
		return nil, mapError("list payment requests", err)
	}
	defer rows.Close()

	out := make([]models.PaymentRequest, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("scan payment request", err)
		}
		out = append(out, *p)
	}
	return out, mapError("list payment requests", rows.Err())
}

func scanPayment(s scanner) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	var channel, intent, status string
	err := s.Scan(&p.ID, &p.BuyerID, &p.ListingID, &p.SellerID, &p.Amount, &channel, &intent, &p.Evidence,
		&status, &p.Read, &p.RejectionReason, &p.SubmittedAt, &p.DecidedAt, &p.PaidOutAt)
	if err != nil {
		return nil, err
	}
	p.Channel = models.PaymentChannel(channel)
	p.Intent = models.ContractType(intent)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}
