// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"readiness-workers/internal/common/config"
	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
)

// Client wraps the Zeebe gRPC client with connection retry and a health check.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

// ConfigFrom builds a client config from the camunda config section.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	timeout := config.GetDuration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      timeout,
		RetryConfig:            DefaultRetryConfig,
	}
}

// Connect creates the Zeebe client and waits for the broker topology,
// retrying transient failures with exponential backoff.
func Connect(ctx context.Context, cfg *ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	var client *Client
	err := Retry(ctx, cfg.RetryConfig, log, "zeebe connection", func(ctx context.Context) error {
		c, err := newClient(ctx, cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, mapZeebeError(err, "topology")
	}

	return &Client{
		client: zeebeClient,
		config: cfg,
	}, nil
}

// Retry runs op until it succeeds, the error is not transient, or the
// attempts run out. Delays double from BaseDelay up to MaxDelay.
func Retry(ctx context.Context, rc *RetryConfig, log logger.Logger, operation string, op func(context.Context) error) error {
	var err error
	delay := rc.BaseDelay

	for attempt := 1; attempt <= rc.MaxRetries; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt == rc.MaxRetries {
			break
		}

		log.Warn(operation+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxRetries":  rc.MaxRetries,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt, ctx.Err())
		}

		delay *= 2
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

// Zeebe returns the raw client for opening job workers.
func (c *Client) Zeebe() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// isRetryableZeebeError checks if the error is transient and should be retried.
func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts Zeebe errors into standardized application errors.
// The original message is kept so isRetryableZeebeError still sees it.
func mapZeebeError(err error, operation string) error {
	lowerMsg := strings.ToLower(err.Error())
	wrapped := fmt.Errorf("zeebe %s: %w", operation, err)

	switch {
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		return fmt.Errorf("%w: %s", errors.NewTimeoutError("zeebe", wrapped), err.Error())
	default:
		return fmt.Errorf("%w: %s", errors.NewExternalServiceError("zeebe", wrapped), err.Error())
	}
}
