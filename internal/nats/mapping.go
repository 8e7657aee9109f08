package nats

import (
	"context"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/orgservice"
)

// MappingClient implements orgservice.MappingService over request/reply.
// Creates go to <subject>.create and renames to <subject>.update.
type MappingClient struct {
	client  *Client
	subject string
}

var _ orgservice.MappingService = (*MappingClient)(nil)

// NewMappingClient creates a mapping client rooted at subject.
func NewMappingClient(client *Client, subject string) *MappingClient {
	return &MappingClient{client: client, subject: subject}
}

type mappingUpdate struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
}

// Create registers a new slug.
func (m *MappingClient) Create(ctx context.Context, req orgservice.MappingCreate) error {
	_, err := m.client.Request(ctx, m.subject+".create", req)
	return err
}

// Update renames the mapping of an organization.
func (m *MappingClient) Update(ctx context.Context, orgID uuid.UUID, name string) error {
	_, err := m.client.Request(ctx, m.subject+".update", mappingUpdate{OrganizationID: orgID, Name: name})
	return err
}
