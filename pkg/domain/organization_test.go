package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestOrganization_Persisted(t *testing.T) {
	org := &Organization{Name: "Acme"}
	if org.Persisted() {
		t.Error("organization without ID should not be persisted")
	}

	org.ID = uuid.New()
	if !org.Persisted() {
		t.Error("organization with ID should be persisted")
	}
}

func TestOrganization_TrackedFields(t *testing.T) {
	org := &Organization{
		ID:          uuid.New(),
		Name:        "Acme",
		Slug:        "acme",
		DefaultRole: RoleMember,
		Status:      OrganizationStatusVisible,
		Flags:       OrganizationFlags{Require2FA: true},
	}

	fields := org.TrackedFields()

	if fields[FieldName] != "Acme" {
		t.Errorf("name: got %v, want Acme", fields[FieldName])
	}
	if fields[FieldSlug] != "acme" {
		t.Errorf("slug: got %v, want acme", fields[FieldSlug])
	}
	if fields[FlagRequire2FA] != true {
		t.Errorf("require_2fa: got %v, want true", fields[FlagRequire2FA])
	}
	if fields[FlagEarlyAdopter] != false {
		t.Errorf("early_adopter: got %v, want false", fields[FlagEarlyAdopter])
	}
	for _, name := range FlagNames {
		if _, ok := fields[name]; !ok {
			t.Errorf("flag %s missing from tracked fields", name)
		}
	}
}

func TestOrganizationStatus_IsDeleting(t *testing.T) {
	tests := []struct {
		status OrganizationStatus
		want   bool
	}{
		{OrganizationStatusVisible, false},
		{OrganizationStatusPendingDeletion, true},
		{OrganizationStatusDeletionInProgress, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsDeleting(); got != tt.want {
				t.Errorf("IsDeleting() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptionRecord_TrackedFieldsIgnoresWhitespace(t *testing.T) {
	a := &OptionRecord{Key: "k", Value: json.RawMessage(`[1, 2]`)}
	b := &OptionRecord{Key: "k", Value: json.RawMessage(`[1,2]`)}

	if a.TrackedFields()["value"] != b.TrackedFields()["value"] {
		t.Errorf("expected equal compacted values, got %v and %v", a.TrackedFields()["value"], b.TrackedFields()["value"])
	}
}

func TestRoleSet(t *testing.T) {
	roles := DefaultRoles()

	for _, id := range []string{RoleMember, RoleAdmin, RoleManager, RoleOwner} {
		if !roles.Has(id) {
			t.Errorf("expected role %q to be recognized", id)
		}
	}
	if roles.Has("billing") {
		t.Error("unexpected role billing")
	}

	var nilSet *RoleSet
	if nilSet.Has(RoleMember) {
		t.Error("nil role set should not recognize roles")
	}

	custom := NewRoleSet(Role{ID: "a"}, Role{ID: "b"}, Role{ID: "a", Name: "A"})
	ids := custom.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}
}

func TestActor(t *testing.T) {
	anon := Actor{}
	if anon.ID() != nil {
		t.Error("anonymous actor should have nil ID")
	}

	owner := Actor{UserID: uuid.New(), Authenticated: true, Scopes: []string{ScopeOrgWrite, ScopeOrgAdmin}}
	if !owner.IsOwner() {
		t.Error("actor with org:admin should be owner")
	}
	if id := owner.ID(); id == nil || *id != owner.UserID {
		t.Errorf("ID() = %v, want %v", id, owner.UserID)
	}

	member := Actor{UserID: uuid.New(), Authenticated: true, Scopes: []string{ScopeOrgWrite}}
	if member.IsOwner() {
		t.Error("actor without org:admin should not be owner")
	}
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError()
	if verr.ErrOrNil() != nil {
		t.Error("empty validation error should be nil")
	}

	verr.Add("slug", "first")
	verr.Add("slug", "second")
	verr.Add("name", "bad")

	if verr.Fields["slug"] != "first" {
		t.Errorf("slug message: got %q, want first", verr.Fields["slug"])
	}

	err := verr.ErrOrNil()
	var target *ValidationError
	if !errors.As(err, &target) {
		t.Fatal("expected *ValidationError")
	}
	if got, want := err.Error(), "validation failed: name: bad; slug: first"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConflictError_Unwrap(t *testing.T) {
	cause := errors.New("duplicate key")
	err := &ConflictError{Field: "slug", Message: "taken", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ConflictError should unwrap to its cause")
	}
	if err.Error() != "taken" {
		t.Errorf("Error() = %q, want taken", err.Error())
	}
}

func TestChangeSet_Fields(t *testing.T) {
	cs := ChangeSet{"slug": "from a to b", "name": "from x to y"}

	fields := cs.Fields()
	if len(fields) != 2 || fields[0] != "name" || fields[1] != "slug" {
		t.Errorf("Fields() = %v, want [name slug]", fields)
	}
	if !cs.Has("slug") || cs.Has("require_2fa") {
		t.Error("Has() mismatch")
	}
}

func TestRoleSet_GetScopes(t *testing.T) {
	roles := DefaultRoles()

	owner, ok := roles.Get(RoleOwner)
	if !ok {
		t.Fatal("owner role missing")
	}
	found := false
	for _, s := range owner.Scopes {
		if s == ScopeOrgAdmin {
			found = true
		}
	}
	if !found {
		t.Errorf("owner scopes = %v, want org:admin", owner.Scopes)
	}

	if _, ok := roles.Get("janitor"); ok {
		t.Error("unexpected role janitor")
	}
}
