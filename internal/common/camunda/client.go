// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the exponential backoff used while connecting.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to the gateway and waits until its topology answers,
// retrying transient failures with exponential backoff.
func NewClient(ctx context.Context, config *ClientConfig, log logger.Logger) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, errors.NewExternalServiceError("zeebe", fmt.Errorf("create client: %w", err))
	}

	c := &Client{client: zeebeClient, config: config}
	err = c.withRetry(ctx, log, "zeebe topology", func(ctx context.Context) error {
		return c.HealthCheck(ctx)
	})
	if err != nil {
		zeebeClient.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return mapZeebeError(err, "topology")
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, log logger.Logger, operation string, fn func(context.Context) error) error {
	rc := c.config.RetryConfig
	delay := rc.BaseDelay

	var err error
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt == rc.MaxRetries {
			return err
		}

		log.Warn(operation+" failed, retrying", map[string]interface{}{
			"attempt":     attempt + 1,
			"maxRetries":  rc.MaxRetries,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
		delay *= 2
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}
	return err
}

func isRetryableZeebeError(err error) bool {
	code := errors.CodeOf(err)
	return code == errors.ErrCodeExternalService || code == errors.ErrCodeTimeout
}

// mapZeebeError classifies gateway errors by their gRPC status text.
func mapZeebeError(err error, operation string) error {
	msg := strings.ToLower(err.Error())
	wrapped := fmt.Errorf("zeebe %s: %w", operation, err)

	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "unauthenticated"):
		return errors.NewForbiddenError(wrapped.Error())
	case strings.Contains(msg, "not found"):
		return errors.NewNotFoundError("zeebe resource", operation)
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
