// Package postgres implements store.Store on PostgreSQL through database/sql
// and lib/pq. Rows read with GetForUpdate are locked with SELECT ... FOR
// UPDATE until the surrounding transaction ends.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"marketplace-verification/internal/store"

	"github.com/lib/pq"
)

//go:embed schema.sql
var Schema string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &tx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	q *sql.Tx
}

func (t *tx) Users() store.UserRepository                 { return &userRepo{q: t.q} }
func (t *tx) Publishers() store.PublisherRepository       { return &publisherRepo{q: t.q} }
func (t *tx) Subscriptions() store.SubscriptionRepository { return &subscriptionRepo{q: t.q} }
func (t *tx) Listings() store.ListingRepository           { return &listingRepo{q: t.q} }
func (t *tx) Payments() store.PaymentRepository           { return &paymentRepo{q: t.q} }
func (t *tx) Contracts() store.ContractRepository         { return &contractRepo{q: t.q} }
func (t *tx) Notifications() store.NotificationRepository { return &notificationRepo{q: t.q} }

type scanner interface {
	Scan(dest ...interface{}) error
}

// mapError translates driver errors into the store sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case uniqueViolation:
			return store.ErrConflict
		case foreignKeyViolation:
			return store.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne returns store.ErrNotFound when an UPDATE or DELETE touched no row.
func expectOne(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
