package orgsettings

import "github.com/tendant/simple-org-slim/pkg/domain"

// IdempotencyKeyMaxLength bounds the caller supplied mapping idempotency key.
const IdempotencyKeyMaxLength = 48

// UpdateRequest is a partial organization update. A nil field was not
// requested; JSON null decodes to nil and is treated the same way.
type UpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Slug       *string `json:"slug,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	AvatarType *string `json:"avatarType,omitempty"`

	OpenMembership           *bool `json:"openMembership,omitempty"`
	AllowSharedIssues        *bool `json:"allowSharedIssues,omitempty"`
	EnhancedPrivacy          *bool `json:"enhancedPrivacy,omitempty"`
	IsEarlyAdopter           *bool `json:"isEarlyAdopter,omitempty"`
	CodecovAccess            *bool `json:"codecovAccess,omitempty"`
	Require2FA               *bool `json:"require2FA,omitempty"`
	RequireEmailVerification *bool `json:"requireEmailVerification,omitempty"`

	ProjectRateLimit     *int      `json:"projectRateLimit,omitempty"`
	AccountRateLimit     *int      `json:"accountRateLimit,omitempty"`
	DataScrubber         *bool     `json:"dataScrubber,omitempty"`
	DataScrubberDefaults *bool     `json:"dataScrubberDefaults,omitempty"`
	SensitiveFields      *[]string `json:"sensitiveFields,omitempty"`
	SafeFields           *[]string `json:"safeFields,omitempty"`
	StoreCrashReports    *int      `json:"storeCrashReports,omitempty"`
	AttachmentsRole      *string   `json:"attachmentsRole,omitempty"`
	DebugFilesRole       *string   `json:"debugFilesRole,omitempty"`
	EventsMemberAdmin    *bool     `json:"eventsMemberAdmin,omitempty"`
	AlertsMemberWrite    *bool     `json:"alertsMemberWrite,omitempty"`
	ScrubIPAddresses     *bool     `json:"scrubIPAddresses,omitempty"`
	ScrapeJavaScript     *bool     `json:"scrapeJavaScript,omitempty"`
	RelayPiiConfig       *string   `json:"relayPiiConfig,omitempty"`
	AllowJoinRequests    *bool     `json:"allowJoinRequests,omitempty"`
	ApdexThreshold       *int      `json:"apdexThreshold,omitempty"`

	TrustedRelays *[]domain.TrustedRelay `json:"trustedRelays,omitempty"`

	// Owner-only fields.
	DefaultRole    *string `json:"defaultRole,omitempty"`
	CancelDeletion *bool   `json:"cancelDeletion,omitempty"`
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
}

// OwnerOnlyFields returns the requested fields that need owner privileges.
func (r *UpdateRequest) OwnerOnlyFields() []string {
	var fields []string
	if r.DefaultRole != nil {
		fields = append(fields, "defaultRole")
	}
	if r.CancelDeletion != nil {
		fields = append(fields, "cancelDeletion")
	}
	return fields
}

// Options returns the requested option values keyed by request field.
func (r *UpdateRequest) Options() map[string]any {
	opts := make(map[string]any)
	setInt := func(field string, v *int) {
		if v != nil {
			opts[field] = *v
		}
	}
	setBool := func(field string, v *bool) {
		if v != nil {
			opts[field] = *v
		}
	}
	setString := func(field string, v *string) {
		if v != nil {
			opts[field] = *v
		}
	}
	setList := func(field string, v *[]string) {
		if v != nil {
			list := *v
			if list == nil {
				list = []string{}
			}
			opts[field] = list
		}
	}

	setInt("projectRateLimit", r.ProjectRateLimit)
	setInt("accountRateLimit", r.AccountRateLimit)
	setBool("dataScrubber", r.DataScrubber)
	setList("sensitiveFields", r.SensitiveFields)
	setList("safeFields", r.SafeFields)
	setBool("scrapeJavaScript", r.ScrapeJavaScript)
	setBool("dataScrubberDefaults", r.DataScrubberDefaults)
	setInt("storeCrashReports", r.StoreCrashReports)
	setString("attachmentsRole", r.AttachmentsRole)
	setString("debugFilesRole", r.DebugFilesRole)
	setBool("eventsMemberAdmin", r.EventsMemberAdmin)
	setBool("alertsMemberWrite", r.AlertsMemberWrite)
	setBool("scrubIPAddresses", r.ScrubIPAddresses)
	setString("relayPiiConfig", r.RelayPiiConfig)
	setBool("allowJoinRequests", r.AllowJoinRequests)
	setInt("apdexThreshold", r.ApdexThreshold)
	return opts
}
