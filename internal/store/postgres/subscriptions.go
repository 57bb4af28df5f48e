package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"marketplace-verification/internal/models"
)

const subscriptionColumns = `id, requester_id, plan, fee, evidence, status, submitted_at,
	decided_at, rejection_reason, valid_from, valid_until`

type subscriptionRepo struct {
	q *sql.Tx
}

func (r *subscriptionRepo) Create(ctx context.Context, req *models.SubscriptionRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO subscription_requests (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.RequesterID, string(req.Plan), req.Fee, req.Evidence, string(req.Status),
		req.SubmittedAt, req.DecidedAt, req.RejectionReason, req.ValidFrom, req.ValidUntil)
	return mapError("insert subscription request", err)
}

func (r *subscriptionRepo) Get(ctx context.Context, id string) (*models.SubscriptionRequest, error) {
	return r.get(ctx, `SELECT `+subscriptionColumns+` FROM subscription_requests WHERE id = $1`, id)
}

func (r *subscriptionRepo) GetForUpdate(ctx context.Context, id string) (*models.SubscriptionRequest, error) {
	return r.get(ctx, `SELECT `+subscriptionColumns+` FROM subscription_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *subscriptionRepo) get(ctx context.Context, query, id string) (*models.SubscriptionRequest, error) {
	req, err := scanSubscription(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError("get subscription request", err)
	}
	return req, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, req *models.SubscriptionRequest) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE subscription_requests
		SET status = $2, decided_at = $3, rejection_reason = $4, valid_from = $5, valid_until = $6
		WHERE id = $1
	`, req.ID, string(req.Status), req.DecidedAt, req.RejectionReason, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return mapError("update subscription request", err)
	}
	return expectOne("update subscription request", res)
}

func (r *subscriptionRepo) ListByStatus(ctx context.Context, status models.SubscriptionStatus) ([]models.SubscriptionRequest, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscription_requests
		WHERE status = $1 ORDER BY submitted_at, id`, string(status))
}

func (r *subscriptionRepo) ListByRequester(ctx context.Context, requesterID string) ([]models.SubscriptionRequest, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscription_requests
		WHERE requester_id = $1 ORDER BY submitted_at, id`, requesterID)
}

func (r *subscriptionRepo) list(ctx context.Context, query string, arg interface{}) ([]models.SubscriptionRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, mapError("list subscription requests", err)
	}
	defer rows.Close()

	out := make([]models.SubscriptionRequest, 0)
	for rows.Next() {
		req, err := scanSubscription(rows)
		if err != nil {
			return nil, mapError("scan subscription request", err)
		}
		out = append(out, *req)
	}
	return out, mapError("list subscription requests", rows.Err())
}

func (r *subscriptionRepo) ExpireActiveBefore(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		UPDATE subscription_requests SET status = $1
		WHERE status = $2 AND valid_until < $3
		RETURNING id
	`, string(models.SubscriptionExpired), string(models.SubscriptionActive), now)
	if err != nil {
		return nil, mapError("expire subscription requests", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("scan expired id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("expire subscription requests", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func scanSubscription(s scanner) (*models.SubscriptionRequest, error) {
	var req models.SubscriptionRequest
	var plan, status string
	err := s.Scan(&req.ID, &req.RequesterID, &plan, &req.Fee, &req.Evidence, &status, &req.SubmittedAt,
		&req.DecidedAt, &req.RejectionReason, &req.ValidFrom, &req.ValidUntil)
	if err != nil {
		return nil, err
	}
	req.Plan = models.SubscriptionPlan(plan)
	req.Status = models.SubscriptionStatus(status)
	return &req, nil
}
