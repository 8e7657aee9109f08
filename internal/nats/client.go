// Package nats connects the service to a NATS server. It publishes outbox
// messages and talks to the mapping service over request/reply.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotReady is returned when the connection is closed or draining.
var ErrNotReady = errors.New("nats connection is not ready")

// Config holds connection settings.
type Config struct {
	URL           string
	Name          string
	Timeout       time.Duration
	MaxReconnect  int
	ReconnectWait time.Duration
}

// conn is the part of *nats.Conn the client uses.
type conn interface {
	Publish(subj string, data []byte) error
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
	IsConnected() bool
	IsDraining() bool
	Close()
}

// Client wraps a NATS connection.
type Client struct {
	conn    conn
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient dials the server described by cfg.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "simple-org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	logger.InfoContext(ctx, "connecting to NATS", "url", cfg.URL)

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err, "status", nc.Status())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.Error("async NATS error", "error", err, "subject", s.Subject)
				return
			}
			logger.Error("async NATS error", "error", err)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed", "status", nc.Status())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.InfoContext(ctx, "NATS connected", "connected_url", nc.ConnectedUrl())
	return newClient(nc, cfg.Timeout, logger), nil
}

func newClient(c conn, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: c, timeout: timeout, logger: logger}
}

// Close closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsReady reports whether messages can be sent.
func (c *Client) IsReady() error {
	if c.conn == nil || !c.conn.IsConnected() || c.conn.IsDraining() {
		return ErrNotReady
	}
	return nil
}

// Publish sends raw data to subject.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.IsReady(); err != nil {
		c.logger.ErrorContext(ctx, "NATS client is not ready for publishing", "subject", subject)
		return err
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish message", "error", err, "subject", subject)
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.logger.DebugContext(ctx, "message published", "subject", subject, "message_size", len(data))
	return nil
}

// replyError is the error shape responders use.
type replyError struct {
	Error string `json:"error"`
}

// Request sends message as JSON and returns the reply body. A reply of the
// form {"error": "..."} is turned into an error.
func (c *Client) Request(ctx context.Context, subject string, message any) ([]byte, error) {
	if err := c.IsReady(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}

	var reply replyError
	if err := json.Unmarshal(msg.Data, &reply); err == nil && reply.Error != "" {
		c.logger.WarnContext(ctx, "request answered with an error", "subject", subject, "error", reply.Error)
		return nil, &RemoteError{Subject: subject, Message: reply.Error}
	}
	return msg.Data, nil
}

// RemoteError is an error reported by the responder.
type RemoteError struct {
	Subject string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}
