package orgsettings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// OptionKind is the value type of an organization option.
type OptionKind int

const (
	KindInt OptionKind = iota
	KindBool
	KindString
	KindList
)

// OptionDef binds a request field to its stored option key.
type OptionDef struct {
	Field   string
	Key     string
	Kind    OptionKind
	Default any
}

// Option keys that need special handling outside the registry.
const (
	KeyProjectRateLimit = "sentry:project-rate-limit"
	KeyAccountRateLimit = "sentry:account-rate-limit"
	KeyTrustedRelays    = "sentry:trusted-relays"
)

// LegacyRateLimitKeys are the options whose presence marks an organization as
// using legacy rate limits.
var LegacyRateLimitKeys = []string{KeyProjectRateLimit, KeyAccountRateLimit}

// Defaults of the registered options.
const (
	ProjectRateLimitDefault     = 100
	AccountRateLimitDefault     = 0
	StoreCrashReportsDefault    = 0
	StoreCrashReportsMax        = 20
	AttachmentsRoleDefault      = "member"
	DebugFilesRoleDefault       = "admin"
	EventsMemberAdminDefault    = true
	AlertsMemberWriteDefault    = true
	JoinRequestsDefault         = true
	ScrapeJavaScriptDefault     = true
	RequireScrubDataDefault     = false
	RequireScrubDefaultsDefault = false
	RequireScrubIPAddrDefault   = false
)

// OrgOptions lists every option an update request may set, in apply order.
var OrgOptions = []OptionDef{
	{Field: "projectRateLimit", Key: KeyProjectRateLimit, Kind: KindInt, Default: ProjectRateLimitDefault},
	{Field: "accountRateLimit", Key: KeyAccountRateLimit, Kind: KindInt, Default: AccountRateLimitDefault},
	{Field: "dataScrubber", Key: "sentry:require_scrub_data", Kind: KindBool, Default: RequireScrubDataDefault},
	{Field: "sensitiveFields", Key: "sentry:sensitive_fields", Kind: KindList, Default: nil},
	{Field: "safeFields", Key: "sentry:safe_fields", Kind: KindList, Default: nil},
	{Field: "scrapeJavaScript", Key: "sentry:scrape_javascript", Kind: KindBool, Default: ScrapeJavaScriptDefault},
	{Field: "dataScrubberDefaults", Key: "sentry:require_scrub_defaults", Kind: KindBool, Default: RequireScrubDefaultsDefault},
	{Field: "storeCrashReports", Key: "sentry:store_crash_reports", Kind: KindInt, Default: StoreCrashReportsDefault},
	{Field: "attachmentsRole", Key: "sentry:attachments_role", Kind: KindString, Default: AttachmentsRoleDefault},
	{Field: "debugFilesRole", Key: "sentry:debug_files_role", Kind: KindString, Default: DebugFilesRoleDefault},
	{Field: "eventsMemberAdmin", Key: "sentry:events_member_admin", Kind: KindBool, Default: EventsMemberAdminDefault},
	{Field: "alertsMemberWrite", Key: "sentry:alerts_member_write", Kind: KindBool, Default: AlertsMemberWriteDefault},
	{Field: "scrubIPAddresses", Key: "sentry:require_scrub_ip_address", Kind: KindBool, Default: RequireScrubIPAddrDefault},
	{Field: "relayPiiConfig", Key: "sentry:relay_pii_config", Kind: KindString, Default: nil},
	{Field: "allowJoinRequests", Key: "sentry:join_requests", Kind: KindBool, Default: JoinRequestsDefault},
	{Field: "apdexThreshold", Key: "sentry:apdex_threshold", Kind: KindInt, Default: nil},
}

// OptionByField returns the registry entry for a request field.
func OptionByField(field string) (OptionDef, bool) {
	for _, def := range OrgOptions {
		if def.Field == field {
			return def, true
		}
	}
	return OptionDef{}, false
}

// IsDefault returns true if v equals the option's documented default.
func (d OptionDef) IsDefault(v any) bool {
	if d.Default == nil {
		return v == nil
	}
	return reflect.DeepEqual(v, d.Default)
}

// Encode converts a request value into its stored JSON form.
func (d OptionDef) Encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode option %s: %w", d.Key, err)
	}
	return raw, nil
}

// DecodeOption converts a stored option into a Go value for the given kind.
func DecodeOption(kind OptionKind, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch kind {
	case KindInt:
		var v int
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindBool:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindString:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		var v []string
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}

// formatValue renders a value for a change message. Strings are shown bare,
// everything else as compact JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return string(t)
		}
		return formatValue(decoded)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
