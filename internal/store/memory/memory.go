// Package memory is an in-process Store used by tests and local runs.
// Transactions are serialized behind one mutex and work on a copy of the
// data that replaces the committed state only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-verification/internal/models"
	"marketplace-verification/internal/store"
)

type state struct {
	users         map[string]models.User
	publishers    map[string]models.PublisherCapability
	subscriptions map[string]models.SubscriptionRequest
	listings      map[string]models.Listing
	payments      map[string]models.PaymentRequest
	contracts     map[string]models.Contract
	notifications []models.Notification
}

func newState() *state {
	return &state{
		users:         map[string]models.User{},
		publishers:    map[string]models.PublisherCapability{},
		subscriptions: map[string]models.SubscriptionRequest{},
		listings:      map[string]models.Listing{},
		payments:      map[string]models.PaymentRequest{},
		contracts:     map[string]models.Contract{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.publishers {
		c.publishers[k] = v
	}
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	c.notifications = append([]models.Notification(nil), s.notifications...)
	return c
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

type tx struct{ s *state }

func (t *tx) Users() store.UserRepository                 { return users{t.s} }
func (t *tx) Publishers() store.PublisherRepository       { return publishers{t.s} }
func (t *tx) Subscriptions() store.SubscriptionRepository { return subscriptions{t.s} }
func (t *tx) Listings() store.ListingRepository           { return listings{t.s} }
func (t *tx) Payments() store.PaymentRepository           { return payments{t.s} }
func (t *tx) Contracts() store.ContractRepository         { return contracts{t.s} }
func (t *tx) Notifications() store.NotificationRepository { return notifications{t.s} }

// ==========================
// Users
// ==========================

type users struct{ s *state }

func (r users) Create(_ context.Context, u *models.User) error {
	if _, ok := r.s.users[u.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range r.s.users {
		if u.Email != "" && existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r users) Get(_ context.Context, id string) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

// GetForUpdate is Get: the store-wide mutex already serializes transactions.
func (r users) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.Get(ctx, id)
}

func (r users) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	out := make([]models.User, 0)
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ==========================
// Publishers
// ==========================

type publishers struct{ s *state }

func (r publishers) Get(_ context.Context, userID string) (*models.PublisherCapability, error) {
	p, ok := r.s.publishers[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r publishers) Upsert(_ context.Context, p *models.PublisherCapability) error {
	if _, ok := r.s.users[p.UserID]; !ok {
		return store.ErrNotFound
	}
	r.s.publishers[p.UserID] = *p
	return nil
}

// ==========================
// Subscription requests
// ==========================

type subscriptions struct{ s *state }

func (r subscriptions) Create(_ context.Context, req *models.SubscriptionRequest) error {
	if _, ok := r.s.subscriptions[req.ID]; ok {
		return store.ErrConflict
	}
	r.s.subscriptions[req.ID] = *req
	return nil
}

func (r subscriptions) Get(_ context.Context, id string) (*models.SubscriptionRequest, error) {
	req, ok := r.s.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &req, nil
}

func (r subscriptions) GetForUpdate(ctx context.Context, id string) (*models.SubscriptionRequest, error) {
	return r.Get(ctx, id)
}

func (r subscriptions) Update(_ context.Context, req *models.SubscriptionRequest) error {
	if _, ok := r.s.subscriptions[req.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.subscriptions[req.ID] = *req
	return nil
}

func (r subscriptions) ListByStatus(_ context.Context, status models.SubscriptionStatus) ([]models.SubscriptionRequest, error) {
	return r.filter(func(req models.SubscriptionRequest) bool { return req.Status == status }), nil
}

func (r subscriptions) ListByRequester(_ context.Context, requesterID string) ([]models.SubscriptionRequest, error) {
	return r.filter(func(req models.SubscriptionRequest) bool { return req.RequesterID == requesterID }), nil
}

func (r subscriptions) ExpireActiveBefore(_ context.Context, now time.Time) ([]string, error) {
	ids := make([]string, 0)
	for id, req := range r.s.subscriptions {
		if req.Status == models.SubscriptionActive && req.ValidUntil != nil && req.ValidUntil.Before(now) {
			req.Status = models.SubscriptionExpired
			r.s.subscriptions[id] = req
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r subscriptions) filter(keep func(models.SubscriptionRequest) bool) []models.SubscriptionRequest {
	out := make([]models.SubscriptionRequest, 0)
	for _, req := range r.s.subscriptions {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// ==========================
// Listings
// ==========================

type listings struct{ s *state }

func (r listings) Create(_ context.Context, l *models.Listing) error {
	if _, ok := r.s.listings[l.ID]; ok {
		return store.ErrConflict
	}
	r.s.listings[l.ID] = *l
	return nil
}

func (r listings) Get(_ context.Context, id string) (*models.Listing, error) {
	l, ok := r.s.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (r listings) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return r.Get(ctx, id)
}

func (r listings) UpdateStatus(_ context.Context, id string, status models.ListingStatus, at time.Time) error {
	l, ok := r.s.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = at
	r.s.listings[id] = l
	return nil
}

// ==========================
// Payment requests
// ==========================

type payments struct{ s *state }

func (r payments) Create(_ context.Context, p *models.PaymentRequest) error {
	if _, ok := r.s.payments[p.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range r.s.payments {
		if existing.ListingID == p.ListingID && existing.BuyerID == p.BuyerID {
			return store.ErrConflict
		}
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r payments) Get(_ context.Context, id string) (*models.PaymentRequest, error) {
	p, ok := r.s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r payments) GetForUpdate(ctx context.Context, id string) (*models.PaymentRequest, error) {
	return r.Get(ctx, id)
}

func (r payments) ExistsFor(_ context.Context, listingID, buyerID string) (bool, error) {
	for _, p := range r.s.payments {
		if p.ListingID == listingID && p.BuyerID == buyerID {
			return true, nil
		}
	}
	return false, nil
}

func (r payments) Update(_ context.Context, p *models.PaymentRequest) error {
	if _, ok := r.s.payments[p.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r payments) Delete(_ context.Context, id string) error {
	if _, ok := r.s.payments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.payments, id)
	return nil
}

func (r payments) ListByStatus(_ context.Context, status models.PaymentStatus) ([]models.PaymentRequest, error) {
	out := make([]models.PaymentRequest, 0)
	for _, p := range r.s.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// ==========================
// Contracts
// ==========================

type contracts struct{ s *state }

func copyContract(c models.Contract) *models.Contract {
	c.Signatories = append([]string(nil), c.Signatories...)
	return &c
}

func (r contracts) Create(_ context.Context, c *models.Contract) error {
	if _, ok := r.s.contracts[c.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range r.s.contracts {
		if existing.ListingID == c.ListingID {
			return store.ErrConflict
		}
	}
	r.s.contracts[c.ID] = *copyContract(*c)
	return nil
}

func (r contracts) Get(_ context.Context, id string) (*models.Contract, error) {
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyContract(c), nil
}

func (r contracts) GetForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	return r.Get(ctx, id)
}

func (r contracts) GetByListing(_ context.Context, listingID string) (*models.Contract, error) {
	for _, c := range r.s.contracts {
		if c.ListingID == listingID {
			return copyContract(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r contracts) Update(_ context.Context, c *models.Contract) error {
	if _, ok := r.s.contracts[c.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.contracts[c.ID] = *copyContract(*c)
	return nil
}

func (r contracts) Delete(_ context.Context, id string) error {
	if _, ok := r.s.contracts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.contracts, id)
	return nil
}

// ==========================
// Notifications
// ==========================

type notifications struct{ s *state }

func (r notifications) Create(_ context.Context, n *models.Notification) error {
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notifications) ListByRecipient(_ context.Context, recipientID string) ([]models.Notification, error) {
	out := make([]models.Notification, 0)
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}
