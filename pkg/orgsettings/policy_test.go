package orgsettings

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func basePolicyContext() PolicyContext {
	return PolicyContext{
		Organization: &domain.Organization{Slug: "acme", Status: domain.OrganizationStatusVisible},
		Actor: domain.Actor{
			Authenticated: true,
			HasTwoFactor:  true,
			EmailVerified: true,
		},
		Capabilities: Capabilities{FeatureRelay: true, FeatureRequiredEmailVerification: true},
		Roles:        domain.DefaultRoles(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        UpdateRequest
		setup      func(pc *PolicyContext)
		wantFields map[string]string
	}{
		{
			name: "empty request",
			req:  UpdateRequest{},
		},
		{
			name: "require2FA without personal two-factor",
			req:  UpdateRequest{Require2FA: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Actor.HasTwoFactor = false
			},
			wantFields: map[string]string{"require2FA": ErrMsgNo2FA},
		},
		{
			name: "require2FA with SSO",
			req:  UpdateRequest{Require2FA: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.HasSSO = true
			},
			wantFields: map[string]string{"require2FA": ErrMsgSSOEnabled},
		},
		{
			name: "disabling require2FA is always allowed",
			req:  UpdateRequest{Require2FA: ptr(false)},
			setup: func(pc *PolicyContext) {
				pc.Actor.HasTwoFactor = false
				pc.HasSSO = true
			},
		},
		{
			name: "requireEmailVerification with unverified email",
			req:  UpdateRequest{RequireEmailVerification: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Actor.EmailVerified = false
			},
			wantFields: map[string]string{"requireEmailVerification": ErrMsgEmailVerification},
		},
		{
			name: "requireEmailVerification with unverified email and no feature",
			req:  UpdateRequest{RequireEmailVerification: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Actor.EmailVerified = false
				pc.Capabilities = Capabilities{}
			},
			wantFields: map[string]string{"requireEmailVerification": ErrMsgEmailVerification},
		},
		{
			name: "requireEmailVerification without feature and verified email",
			req:  UpdateRequest{RequireEmailVerification: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Capabilities = Capabilities{}
			},
		},
		{
			name: "legacy rate limits without stored option",
			req:  UpdateRequest{ProjectRateLimit: ptr(75), AccountRateLimit: ptr(10)},
			wantFields: map[string]string{
				"projectRateLimit": "The projectRateLimit option cannot be configured for this organization",
				"accountRateLimit": "The accountRateLimit option cannot be configured for this organization",
			},
		},
		{
			name: "legacy rate limits with stored option",
			req:  UpdateRequest{ProjectRateLimit: ptr(75)},
			setup: func(pc *PolicyContext) {
				pc.HasLegacyRateLimits = true
			},
		},
		{
			name: "project rate limit out of range",
			req:  UpdateRequest{ProjectRateLimit: ptr(10)},
			setup: func(pc *PolicyContext) {
				pc.HasLegacyRateLimits = true
			},
			wantFields: map[string]string{"projectRateLimit": "Ensure this value is greater than or equal to 50."},
		},
		{
			name:       "store crash reports above max",
			req:        UpdateRequest{StoreCrashReports: ptr(21)},
			wantFields: map[string]string{"storeCrashReports": "Ensure this value is less than or equal to 20."},
		},
		{
			name:       "apdex below minimum",
			req:        UpdateRequest{ApdexThreshold: ptr(0)},
			wantFields: map[string]string{"apdexThreshold": "Ensure this value is greater than or equal to 1."},
		},
		{
			name:       "empty sensitive field",
			req:        UpdateRequest{SensitiveFields: ptr([]string{"password", ""})},
			wantFields: map[string]string{"sensitiveFields": ErrMsgEmptyValues},
		},
		{
			name: "unknown roles",
			req:  UpdateRequest{AttachmentsRole: ptr("janitor"), DebugFilesRole: ptr("admin"), DefaultRole: ptr("nobody")},
			wantFields: map[string]string{
				"attachmentsRole": ErrMsgInvalidRole,
				"defaultRole":     ErrMsgInvalidRole,
			},
		},
		{
			name: "trusted relays without feature",
			req:  UpdateRequest{TrustedRelays: &[]domain.TrustedRelay{{PublicKey: "abc", Name: "r1"}}},
			setup: func(pc *PolicyContext) {
				pc.Capabilities = Capabilities{}
			},
			wantFields: map[string]string{"trustedRelays": ErrMsgRelayFeature},
		},
		{
			name: "duplicated trusted relay key",
			req: UpdateRequest{TrustedRelays: &[]domain.TrustedRelay{
				{PublicKey: "abc", Name: "r1"},
				{PublicKey: "abc", Name: "r2"},
			}},
			wantFields: map[string]string{"trustedRelays": "Duplicated key in Trusted Relays: 'abc'"},
		},
		{
			name:       "trusted relay without name",
			req:        UpdateRequest{TrustedRelays: &[]domain.TrustedRelay{{PublicKey: "abc"}}},
			wantFields: map[string]string{"trustedRelays": ErrMsgRequired},
		},
		{
			name:       "upload avatar type without image",
			req:        UpdateRequest{AvatarType: ptr(domain.AvatarTypeUpload)},
			wantFields: map[string]string{"avatarType": ErrMsgAvatarUpload},
		},
		{
			name: "upload avatar type with stored image",
			req:  UpdateRequest{AvatarType: ptr(domain.AvatarTypeUpload)},
			setup: func(pc *PolicyContext) {
				pc.HasUploadedAvatar = true
			},
		},
		{
			name: "upload avatar type with new image",
			req: UpdateRequest{
				AvatarType: ptr(domain.AvatarTypeUpload),
				Avatar:     ptr(base64.StdEncoding.EncodeToString([]byte("png-bytes"))),
			},
		},
		{
			name:       "invalid avatar data",
			req:        UpdateRequest{Avatar: ptr("%%%")},
			wantFields: map[string]string{"avatar": ErrMsgInvalidImage},
		},
		{
			name:       "invalid slug characters",
			req:        UpdateRequest{Slug: ptr("Acme Corp")},
			wantFields: map[string]string{"slug": ErrMsgInvalidSlug},
		},
		{
			name:       "numeric slug",
			req:        UpdateRequest{Slug: ptr("12345")},
			wantFields: map[string]string{"slug": ErrMsgInvalidSlug},
		},
		{
			name:       "slug too long",
			req:        UpdateRequest{Slug: ptr(strings.Repeat("a", SlugMaxLength+1))},
			wantFields: map[string]string{"slug": "Ensure this field has no more than 50 characters."},
		},
		{
			name: "valid slug",
			req:  UpdateRequest{Slug: ptr("acme_corp-2")},
		},
		{
			name:       "blank name",
			req:        UpdateRequest{Name: ptr("   ")},
			wantFields: map[string]string{"name": ErrMsgBlank},
		},
		{
			name:       "codecov without integration",
			req:        UpdateRequest{CodecovAccess: ptr(true)},
			wantFields: map[string]string{"codecovAccess": ErrMsgCodecovIntegration},
		},
		{
			name:       "relay pii config not json",
			req:        UpdateRequest{RelayPiiConfig: ptr("{nope")},
			wantFields: map[string]string{"relayPiiConfig": ErrMsgInvalidJSON},
		},
		{
			name:       "idempotency key too long",
			req:        UpdateRequest{IdempotencyKey: ptr(strings.Repeat("k", IdempotencyKeyMaxLength+1))},
			wantFields: map[string]string{"idempotencyKey": "Ensure this field has no more than 48 characters."},
		},
		{
			name: "cancel deletion once deletion started",
			req:  UpdateRequest{CancelDeletion: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Organization.Status = domain.OrganizationStatusDeletionInProgress
			},
			wantFields: map[string]string{"cancelDeletion": ErrMsgDeletionStarted},
		},
		{
			name: "cancel pending deletion",
			req:  UpdateRequest{CancelDeletion: ptr(true)},
			setup: func(pc *PolicyContext) {
				pc.Organization.Status = domain.OrganizationStatusPendingDeletion
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := basePolicyContext()
			if tt.setup != nil {
				tt.setup(&pc)
			}

			err := Validate(&tt.req, pc)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected *domain.ValidationError, got %v", err)
			assert.Equal(t, tt.wantFields, verr.Fields)
		})
	}
}

func TestValidate_AggregatesAllFailures(t *testing.T) {
	pc := basePolicyContext()
	pc.Actor.HasTwoFactor = false

	req := UpdateRequest{
		Require2FA:      ptr(true),
		Slug:            ptr("Bad Slug"),
		AttachmentsRole: ptr("janitor"),
		Name:            ptr("Fine"),
	}

	err := Validate(&req, pc)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, ErrMsgNo2FA, verr.Fields["require2FA"])
	assert.Contains(t, verr.Fields, "slug")
	assert.Contains(t, verr.Fields, "attachmentsRole")
}

func TestDecodeAvatar(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeAvatar(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeAvatar("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
