package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	awsclients "marketplace-verification/internal/common/aws"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/metrics"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

const defaultQueueSize = 256

type DispatcherConfig struct {
	QueueSize int
	FromEmail string
}

// Dispatcher persists one notification row per resolved recipient and then
// pushes it out over SES and SNS when those channels are configured.
type Dispatcher struct {
	config DispatcherConfig
	store  store.Store
	email  awsclients.SESService
	sms    awsclients.SNSService
	logger logger.Logger

	queue  chan Event
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewDispatcher(cfg DispatcherConfig, st store.Store, clients *awsclients.Clients, log logger.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	d := &Dispatcher{
		config: cfg,
		store:  st,
		logger: log.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
		queue:  make(chan Event, cfg.QueueSize),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if clients != nil {
		d.email = clients.SES
		d.sms = clients.SNS
	}
	return d
}

// Start drains the queue until Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.queue {
			if err := d.Deliver(ctx, ev); err != nil {
				d.logger.Error("notification delivery failed", map[string]interface{}{
					"type":  string(ev.Type),
					"error": err,
				})
			}
		}
	}()
}

// Notify enqueues ev. A full or closed queue drops the event.
func (d *Dispatcher) Notify(_ context.Context, ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	metrics.NotificationsDropped.Inc()
	d.logger.Warn("notification dropped", map[string]interface{}{
		"type":   string(ev.Type),
		"reason": reason,
	})
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Deliver resolves the recipients of ev, persists a notification for each
// and sends it over the configured channels. Only the persistence step can
// fail the call; channel errors are logged and counted.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) error {
	var recipients []models.User
	err := d.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		users, err := d.resolve(ctx, tx, ev.To)
		if err != nil {
			return err
		}
		createdAt := d.now()
		for _, u := range users {
			n := &models.Notification{
				ID:          uuid.New().String(),
				Type:        ev.Type,
				Content:     ev.Content,
				RecipientID: u.ID,
				CreatedAt:   createdAt,
			}
			if ev.From != "" {
				from := ev.From
				n.FromUserID = &from
			}
			if err := tx.Notifications().Create(ctx, n); err != nil {
				return fmt.Errorf("persist notification: %w", err)
			}
		}
		recipients = users
		return nil
	})
	if err != nil {
		metrics.NotificationsDelivered.WithLabelValues("store", "failed").Inc()
		return err
	}
	metrics.NotificationsDelivered.WithLabelValues("store", "sent").Add(float64(len(recipients)))

	for _, u := range recipients {
		d.push(ctx, ev, u)
	}
	return nil
}

func (d *Dispatcher) resolve(ctx context.Context, tx store.Tx, to []Recipient) ([]models.User, error) {
	seen := make(map[string]bool)
	out := make([]models.User, 0, len(to))

	add := func(u models.User) {
		if !seen[u.ID] {
			seen[u.ID] = true
			out = append(out, u)
		}
	}

	for _, r := range to {
		if r.Broadcast() {
			users, err := tx.Users().ListByRole(ctx, r.Role)
			if err != nil {
				return nil, fmt.Errorf("list %s users: %w", r.Role, err)
			}
			if len(users) == 0 {
				d.logger.Warn("no users hold role", map[string]interface{}{"role": string(r.Role)})
			}
			for _, u := range users {
				add(u)
			}
			continue
		}

		u, err := tx.Users().Get(ctx, r.UserID)
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("recipient not found", map[string]interface{}{"recipientId": r.UserID})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get recipient: %w", err)
		}
		add(*u)
	}
	return out, nil
}

func (d *Dispatcher) push(ctx context.Context, ev Event, u models.User) {
	if d.email != nil && u.Email != "" {
		if err := d.sendEmail(ctx, u.Email, subjectFor(ev.Type), ev.Content); err != nil {
			metrics.NotificationsDelivered.WithLabelValues("email", "failed").Inc()
			d.logger.Error("email send failed", map[string]interface{}{
				"recipientId": u.ID,
				"error":       err,
			})
		} else {
			metrics.NotificationsDelivered.WithLabelValues("email", "sent").Inc()
		}
	}

	if d.sms != nil && u.Phone != "" && ev.Priority == PriorityHigh {
		if err := d.sendSMS(ctx, u.Phone, ev.Content); err != nil {
			metrics.NotificationsDelivered.WithLabelValues("sms", "failed").Inc()
			d.logger.Error("SMS send failed", map[string]interface{}{
				"recipientId": u.ID,
				"error":       err,
			})
		} else {
			metrics.NotificationsDelivered.WithLabelValues("sms", "sent").Inc()
		}
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.config.FromEmail),
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func subjectFor(t models.NotificationType) string {
	switch t {
	case models.NotificationSubscription:
		return "Your publisher subscription"
	case models.NotificationPayment:
		return "Payment update"
	case models.NotificationContract:
		return "Contract update"
	case models.NotificationListing:
		return "Listing update"
	}
	return "Marketplace notification"
}
