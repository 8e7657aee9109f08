// Package outbox drains org_outbox to the message bus.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/notify"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// Transactor runs a unit of work in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(q repository.Querier) error) error
}

// Store is the relay side of the outbox table.
type Store interface {
	ClaimBatchTx(ctx context.Context, q repository.Querier, limit int) ([]*domain.OutboxMessage, error)
	MarkProcessedTx(ctx context.Context, q repository.Querier, ids []uuid.UUID) error
	// MarkFailedTx records a failed attempt. The message is not claimed
	// again before retryAt.
	MarkFailedTx(ctx context.Context, q repository.Querier, id uuid.UUID, cause string, retryAt time.Time) error
}

// Publisher sends a message body to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Members lists the active members of an organization.
type Members interface {
	ListActiveUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
}

// ChannelResolver finds chat channels for recipients.
type ChannelResolver interface {
	ChannelsFor(ctx context.Context, orgID uuid.UUID, provider string, recipients []notify.Recipient) (map[notify.Recipient]notify.Channels, error)
}

// Config holds relay settings.
type Config struct {
	SubjectPrefix string
	BatchSize     int
	PollInterval  time.Duration
	// MaxAttempts is the number of failed publishes after which a message
	// is marked processed and dropped. Zero means retry forever.
	MaxAttempts int
	// MaxRetryInterval caps the delay before a failed message is retried.
	// Delays start at PollInterval and grow exponentially.
	MaxRetryInterval time.Duration
	// NotifyProvider is the chat integration used to route member notices.
	NotifyProvider string
	Logger         *slog.Logger
}

// Relay publishes committed outbox messages.
type Relay struct {
	tx        Transactor
	store     Store
	publisher Publisher
	members   Members
	resolver  ChannelResolver
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewRelay creates a relay. members and resolver may be nil, in which case
// messages are published without delivery channels.
func NewRelay(tx Transactor, store Store, publisher Publisher, members Members, resolver ChannelResolver, cfg Config) *Relay {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "org.outbox"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		tx:        tx,
		store:     store,
		publisher: publisher,
		members:   members,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Envelope is the body published for each outbox message.
type Envelope struct {
	ID        uuid.UUID              `json:"id"`
	Category  domain.OutboxCategory  `json:"category"`
	ObjectID  uuid.UUID              `json:"object_id"`
	Payload   json.RawMessage        `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	Channels  map[string]ChannelList `json:"channels,omitempty"`
}

// ChannelList maps a channel id to the integration id that delivers to it.
type ChannelList map[string]uuid.UUID

// Subject returns the subject a message of category is published to.
func (r *Relay) Subject(category domain.OutboxCategory) string {
	return r.cfg.SubjectPrefix + "." + string(category)
}

// Run polls until ctx is cancelled. A full batch is followed by another
// flush straight away; a batch with failures waits for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started",
		"subject_prefix", r.cfg.SubjectPrefix,
		"batch_size", r.cfg.BatchSize,
		"poll_interval", r.cfg.PollInterval)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "outbox flush failed", "error", err)
				break
			}
			if n < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many messages it settled,
// either delivered or dropped. Messages that fail to publish stay pending
// and are retried after a backoff delay.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var settled int
	err := r.tx.InTx(ctx, func(q repository.Querier) error {
		msgs, err := r.store.ClaimBatchTx(ctx, q, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to claim outbox batch: %w", err)
		}

		var done []uuid.UUID
		for _, msg := range msgs {
			if r.cfg.MaxAttempts > 0 && msg.Attempts >= r.cfg.MaxAttempts {
				r.logger.ErrorContext(ctx, "dropping outbox message after too many attempts",
					"message_id", msg.ID, "category", msg.Category, "attempts", msg.Attempts)
				done = append(done, msg.ID)
				continue
			}

			if err := r.publish(ctx, msg); err != nil {
				r.logger.WarnContext(ctx, "failed to publish outbox message",
					"message_id", msg.ID, "category", msg.Category, "error", err)
				if err := r.store.MarkFailedTx(ctx, q, msg.ID, err.Error(), r.now().Add(r.retryDelay(msg.Attempts))); err != nil {
					return fmt.Errorf("failed to record outbox failure: %w", err)
				}
				continue
			}
			done = append(done, msg.ID)
		}

		if err := r.store.MarkProcessedTx(ctx, q, done); err != nil {
			return fmt.Errorf("failed to mark outbox messages processed: %w", err)
		}
		settled = len(done)
		return nil
	})
	return settled, err
}

// retryDelay returns the wait before the next attempt of a message that
// has already failed attempts times.
func (r *Relay) retryDelay(attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.PollInterval
	bo.MaxInterval = r.cfg.MaxRetryInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	d := bo.NextBackOff()
	for i := 0; i < attempts && d < r.cfg.MaxRetryInterval; i++ {
		d = bo.NextBackOff()
	}
	return d
}

func (r *Relay) publish(ctx context.Context, msg *domain.OutboxMessage) error {
	env := Envelope{
		ID:        msg.ID,
		Category:  msg.Category,
		ObjectID:  msg.ObjectID,
		Payload:   msg.Payload,
		CreatedAt: msg.CreatedAt,
	}
	if len(env.Payload) == 0 {
		env.Payload = json.RawMessage("{}")
	}

	if addressesMembers(msg.Category) {
		channels, err := r.memberChannels(ctx, msg.ObjectID)
		if err != nil {
			return err
		}
		env.Channels = channels
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.publisher.Publish(ctx, r.Subject(msg.Category), data)
}

// addressesMembers reports whether a category is a notice to every member.
func addressesMembers(c domain.OutboxCategory) bool {
	switch c {
	case domain.OutboxDeletionConfirmation, domain.OutboxEnforce2FA, domain.OutboxEnforceEmailVerification:
		return true
	}
	return false
}

// memberChannels resolves the chat channels of every active member, keyed
// by user id.
func (r *Relay) memberChannels(ctx context.Context, orgID uuid.UUID) (map[string]ChannelList, error) {
	if r.members == nil || r.resolver == nil || r.cfg.NotifyProvider == "" {
		return nil, nil
	}

	ids, err := r.members.ListActiveUserIDs(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	recipients := make([]notify.Recipient, 0, len(ids))
	for _, id := range ids {
		recipients = append(recipients, notify.Recipient{Kind: notify.RecipientUser, ID: id})
	}

	resolved, err := r.resolver.ChannelsFor(ctx, orgID, r.cfg.NotifyProvider, recipients)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ChannelList, len(resolved))
	for rcpt, channels := range resolved {
		list := make(ChannelList, len(channels))
		for channelID, in := range channels {
			list[channelID] = in.ID
		}
		out[rcpt.ID.String()] = list
	}
	return out, nil
}
