package postgres

import (
	"context"
	"database/sql"

	"marketplace-verification/internal/models"
)

type userRepo struct {
	q *sql.Tx
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.CreatedAt)
	return mapError("insert user", err)
}

func (r *userRepo) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, created_at
		FROM users WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError("get user", err)
	}
	return u, nil
}

func (r *userRepo) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, created_at
		FROM users WHERE id = $1 FOR UPDATE
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError("lock user", err)
	}
	return u, nil
}

func (r *userRepo) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, email, phone, role, created_at
		FROM users WHERE role = $1 ORDER BY id
	`, string(role))
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		out = append(out, *u)
	}
	return out, mapError("list users", rows.Err())
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	var role string
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

type publisherRepo struct {
	q *sql.Tx
}

func (r *publisherRepo) Get(ctx context.Context, userID string) (*models.PublisherCapability, error) {
	var p models.PublisherCapability
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, subscription_request_id, updated_at
		FROM publishers WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.SubscriptionRequestID, &p.UpdatedAt)
	if err != nil {
		return nil, mapError("get publisher", err)
	}
	return &p, nil
}

func (r *publisherRepo) Upsert(ctx context.Context, p *models.PublisherCapability) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO publishers (user_id, subscription_request_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET subscription_request_id = EXCLUDED.subscription_request_id,
		    updated_at = EXCLUDED.updated_at
	`, p.UserID, p.SubscriptionRequestID, p.UpdatedAt)
	return mapError("upsert publisher", err)
}

type notificationRepo struct {
	q *sql.Tx
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, type, content, from_user_id, recipient_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, string(n.Type), n.Content, n.FromUserID, n.RecipientID, n.Read, n.CreatedAt)
	return mapError("insert notification", err)
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, type, content, from_user_id, recipient_id, read, created_at
		FROM notifications WHERE recipient_id = $1 ORDER BY created_at, id
	`, recipientID)
	if err != nil {
		return nil, mapError("list notifications", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		var typ string
		if err := rows.Scan(&n.ID, &typ, &n.Content, &n.FromUserID, &n.RecipientID, &n.Read, &n.CreatedAt); err != nil {
			return nil, mapError("scan notification", err)
		}
		n.Type = models.NotificationType(typ)
		out = append(out, n)
	}
	return out, mapError("list notifications", rows.Err())
}
