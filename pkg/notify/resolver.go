// Package notify resolves the chat channels that organization notices are
// delivered to.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// RecipientKind distinguishes users from teams.
type RecipientKind string

const (
	RecipientUser RecipientKind = "user"
	RecipientTeam RecipientKind = "team"
)

// Recipient is a user or team a notice is addressed to.
type Recipient struct {
	Kind RecipientKind
	ID   uuid.UUID
}

// Channels maps a channel id to the integration that delivers to it.
type Channels map[string]*domain.Integration

// IntegrationStore is the read side of the integration tables.
type IntegrationStore interface {
	ListActive(ctx context.Context, orgID uuid.UUID, provider string) ([]*domain.Integration, error)
	IdentitiesByUser(ctx context.Context, userID uuid.UUID, providerType string) ([]repository.UserIdentity, error)
	TeamChannel(ctx context.Context, orgID, teamID uuid.UUID, provider string) (*domain.ExternalActor, *domain.Integration, error)
}

// Resolver finds delivery channels for recipients.
type Resolver struct {
	store IntegrationStore
}

// NewResolver creates a resolver over store.
func NewResolver(store IntegrationStore) *Resolver {
	return &Resolver{store: store}
}

// ChannelsFor returns the channels of each recipient for provider. Users
// who never linked an identity and teams without a channel are left out.
func (r *Resolver) ChannelsFor(ctx context.Context, orgID uuid.UUID, provider string, recipients []Recipient) (map[Recipient]Channels, error) {
	out := make(map[Recipient]Channels, len(recipients))

	var integrations []*domain.Integration
	loaded := false

	for _, rcpt := range recipients {
		var channels Channels
		var err error

		switch rcpt.Kind {
		case RecipientUser:
			if !loaded {
				integrations, err = r.store.ListActive(ctx, orgID, provider)
				if err != nil {
					return nil, fmt.Errorf("failed to list integrations: %w", err)
				}
				loaded = true
			}
			channels, err = r.userChannels(ctx, rcpt.ID, provider, integrations)
		case RecipientTeam:
			channels, err = r.teamChannels(ctx, orgID, rcpt.ID, provider)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(channels) > 0 {
			out[rcpt] = channels
		}
	}
	return out, nil
}

// userChannels pairs each linked identity with the integration installed
// from the same workspace. The first matching integration wins.
func (r *Resolver) userChannels(ctx context.Context, userID uuid.UUID, provider string, integrations []*domain.Integration) (Channels, error) {
	identities, err := r.store.IdentitiesByUser(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, nil
	}

	channels := make(Channels)
	for _, ui := range identities {
		for _, in := range integrations {
			if in.ExternalID == ui.Provider.ExternalID {
				channels[ui.Identity.ExternalID] = in
				break
			}
		}
	}
	return channels, nil
}

func (r *Resolver) teamChannels(ctx context.Context, orgID, teamID uuid.UUID, provider string) (Channels, error) {
	actor, in, err := r.store.TeamChannel(ctx, orgID, teamID, provider)
	if errors.Is(err, domain.ErrIntegrationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load team channel: %w", err)
	}
	return Channels{actor.ExternalID: in}, nil
}
