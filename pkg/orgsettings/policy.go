package orgsettings

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// Feature names granted through Capabilities.
const (
	FeatureRelay                     = "relay"
	FeatureRequiredEmailVerification = "required-email-verification"
)

// Rejection messages shared with callers.
const (
	ErrMsgNo2FA              = "Cannot require two-factor authentication without personal two-factor enabled."
	ErrMsgSSOEnabled         = "Cannot require two-factor authentication with SSO enabled"
	ErrMsgEmailVerification  = "Cannot require email verification before verifying your email address."
	ErrMsgRelayFeature       = "Organization does not have the relay feature enabled"
	ErrMsgAvatarUpload       = "Cannot set avatarType to upload without avatar"
	ErrMsgInvalidRole        = "Invalid role"
	ErrMsgEmptyValues        = "Empty values are not allowed."
	ErrMsgInvalidSlug        = "Enter a valid slug consisting of lowercase letters, numbers, underscores or hyphens. It cannot be entirely numeric."
	ErrMsgCodecovIntegration = "Codecov access requires an active Codecov integration."
	ErrMsgRequired           = "This field is required."
	ErrMsgBlank              = "This field may not be blank."
	ErrMsgInvalidImage       = "Invalid image data."
	ErrMsgInvalidJSON        = "Invalid JSON."
	ErrMsgDeletionStarted    = "Organization deletion is already in progress and cannot be cancelled."
)

// Field limits.
const (
	SlugMaxLength           = 50
	NameMaxLength           = 64
	AccountRateLimitMax     = 1000000
	ProjectRateLimitMin     = 50
	ProjectRateLimitMax     = 100
	StoreCrashReportsMin    = -1
	ApdexThresholdMin       = 1
	AvatarMaxBytes          = 1 << 20
	TrustedRelayNameMaxSize = 100
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9_-]+$`)
	numericPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Capabilities is the set of features granted to an organization.
type Capabilities map[string]bool

// Has returns true if the feature is granted.
func (c Capabilities) Has(feature string) bool {
	return c[feature]
}

// PolicyContext holds every fact the rules may consult.
type PolicyContext struct {
	Organization          *domain.Organization
	Actor                 domain.Actor
	HasSSO                bool
	HasLegacyRateLimits   bool
	HasUploadedAvatar     bool
	HasCodecovIntegration bool
	Capabilities          Capabilities
	Roles                 *domain.RoleSet
}

// Rule checks one aspect of an update request and records rejections.
type Rule func(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError)

// Rules are evaluated in order; all of them always run.
var Rules = []Rule{
	validateName,
	validateSlug,
	validateRequire2FA,
	validateRequireEmailVerification,
	validateLegacyRateLimits,
	validateOptionRanges,
	validateFieldLists,
	validateRoles,
	validateTrustedRelays,
	validateAvatar,
	validateCodecovAccess,
	validateRelayPiiConfig,
	validateIdempotencyKey,
	validateCancelDeletion,
}

// Validate runs all rules against req and returns a *domain.ValidationError
// carrying every rejection, or nil.
func Validate(req *UpdateRequest, pc PolicyContext) error {
	verr := domain.NewValidationError()
	for _, rule := range Rules {
		rule(req, pc, verr)
	}
	return verr.ErrOrNil()
}

func validateName(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	if req.Name == nil {
		return
	}
	name := strings.TrimSpace(*req.Name)
	if name == "" {
		verr.Add("name", ErrMsgBlank)
		return
	}
	if len([]rune(name)) > NameMaxLength {
		verr.Add("name", maxLengthMessage(NameMaxLength))
	}
}

func validateSlug(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	if req.Slug == nil {
		return
	}
	slug := *req.Slug
	if len(slug) > SlugMaxLength {
		verr.Add("slug", maxLengthMessage(SlugMaxLength))
		return
	}
	if !slugPattern.MatchString(slug) || numericPattern.MatchString(slug) {
		verr.Add("slug", ErrMsgInvalidSlug)
	}
}

func validateRequire2FA(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if req.Require2FA == nil || !*req.Require2FA {
		return
	}
	if !pc.Actor.HasTwoFactor {
		verr.Add("require2FA", ErrMsgNo2FA)
		return
	}
	if pc.HasSSO {
		verr.Add("require2FA", ErrMsgSSOEnabled)
	}
}

func validateRequireEmailVerification(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if req.RequireEmailVerification == nil || !*req.RequireEmailVerification {
		return
	}
	if !pc.Actor.EmailVerified {
		verr.Add("requireEmailVerification", ErrMsgEmailVerification)
	}
}

func validateLegacyRateLimits(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if pc.HasLegacyRateLimits {
		return
	}
	if req.ProjectRateLimit != nil {
		verr.Add("projectRateLimit", legacyRateLimitMessage("projectRateLimit"))
	}
	if req.AccountRateLimit != nil {
		verr.Add("accountRateLimit", legacyRateLimitMessage("accountRateLimit"))
	}
}

func validateOptionRanges(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	checkRange(verr, "accountRateLimit", req.AccountRateLimit, 0, AccountRateLimitMax)
	checkRange(verr, "projectRateLimit", req.ProjectRateLimit, ProjectRateLimitMin, ProjectRateLimitMax)
	checkRange(verr, "storeCrashReports", req.StoreCrashReports, StoreCrashReportsMin, StoreCrashReportsMax)
	if req.ApdexThreshold != nil && *req.ApdexThreshold < ApdexThresholdMin {
		verr.Add("apdexThreshold", fmt.Sprintf("Ensure this value is greater than or equal to %d.", ApdexThresholdMin))
	}
}

func validateFieldLists(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	for field, list := range map[string]*[]string{
		"sensitiveFields": req.SensitiveFields,
		"safeFields":      req.SafeFields,
	} {
		if list == nil {
			continue
		}
		for _, v := range *list {
			if v == "" {
				verr.Add(field, ErrMsgEmptyValues)
				break
			}
		}
	}
}

func validateRoles(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	for field, role := range map[string]*string{
		"attachmentsRole": req.AttachmentsRole,
		"debugFilesRole":  req.DebugFilesRole,
		"defaultRole":     req.DefaultRole,
	} {
		if role != nil && !pc.Roles.Has(*role) {
			verr.Add(field, ErrMsgInvalidRole)
		}
	}
}

func validateTrustedRelays(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if req.TrustedRelays == nil {
		return
	}
	if !pc.Capabilities.Has(FeatureRelay) {
		verr.Add("trustedRelays", ErrMsgRelayFeature)
		return
	}

	seen := make(map[string]struct{}, len(*req.TrustedRelays))
	for _, relay := range *req.TrustedRelays {
		if relay.PublicKey == "" || strings.TrimSpace(relay.Name) == "" {
			verr.Add("trustedRelays", ErrMsgRequired)
			return
		}
		if len(relay.Name) > TrustedRelayNameMaxSize {
			verr.Add("trustedRelays", maxLengthMessage(TrustedRelayNameMaxSize))
			return
		}
		if _, dup := seen[relay.PublicKey]; dup {
			verr.Add("trustedRelays", fmt.Sprintf("Duplicated key in Trusted Relays: '%s'", relay.PublicKey))
			return
		}
		seen[relay.PublicKey] = struct{}{}
	}
}

func validateAvatar(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	hasNewImage := false
	if req.Avatar != nil && *req.Avatar != "" {
		data, err := DecodeAvatar(*req.Avatar)
		if err != nil || len(data) == 0 || len(data) > AvatarMaxBytes {
			verr.Add("avatar", ErrMsgInvalidImage)
			return
		}
		hasNewImage = true
	}

	if req.AvatarType == nil {
		return
	}
	switch *req.AvatarType {
	case domain.AvatarTypeUpload:
		if !pc.HasUploadedAvatar && !hasNewImage {
			verr.Add("avatarType", ErrMsgAvatarUpload)
		}
	case domain.AvatarTypeLetter:
	default:
		verr.Add("avatarType", fmt.Sprintf("%q is not a valid choice.", *req.AvatarType))
	}
}

func validateCodecovAccess(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if req.CodecovAccess != nil && *req.CodecovAccess && !pc.HasCodecovIntegration {
		verr.Add("codecovAccess", ErrMsgCodecovIntegration)
	}
}

func validateRelayPiiConfig(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	if req.RelayPiiConfig == nil || strings.TrimSpace(*req.RelayPiiConfig) == "" {
		return
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(*req.RelayPiiConfig), &cfg); err != nil {
		verr.Add("relayPiiConfig", ErrMsgInvalidJSON)
	}
}

func validateIdempotencyKey(req *UpdateRequest, _ PolicyContext, verr *domain.ValidationError) {
	if req.IdempotencyKey != nil && len(*req.IdempotencyKey) > IdempotencyKeyMaxLength {
		verr.Add("idempotencyKey", maxLengthMessage(IdempotencyKeyMaxLength))
	}
}

func validateCancelDeletion(req *UpdateRequest, pc PolicyContext, verr *domain.ValidationError) {
	if req.CancelDeletion == nil || !*req.CancelDeletion || pc.Organization == nil {
		return
	}
	if pc.Organization.Status == domain.OrganizationStatusDeletionInProgress {
		verr.Add("cancelDeletion", ErrMsgDeletionStarted)
	}
}

// DecodeAvatar decodes a base64 image, accepting an optional data URI prefix.
func DecodeAvatar(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

func checkRange(verr *domain.ValidationError, field string, v *int, lo, hi int) {
	if v == nil {
		return
	}
	if *v < lo {
		verr.Add(field, fmt.Sprintf("Ensure this value is greater than or equal to %d.", lo))
	} else if *v > hi {
		verr.Add(field, fmt.Sprintf("Ensure this value is less than or equal to %d.", hi))
	}
}

func legacyRateLimitMessage(field string) string {
	return fmt.Sprintf("The %s option cannot be configured for this organization", field)
}

func maxLengthMessage(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}
