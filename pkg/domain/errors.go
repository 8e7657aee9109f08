package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Organization errors
var (
	ErrOrganizationNotFound   = errors.New("organization not found")
	ErrOrganizationNotVisible = errors.New("organization is not visible")
	ErrDefaultOrganization    = errors.New("You cannot remove the default organization.")
	ErrOptionNotFound         = errors.New("option not found")
)

// Authorization errors
var (
	ErrNotAuthenticated = errors.New("This request requires an authenticated user.")
	ErrForbidden        = errors.New("you do not have permission to perform this action")
	ErrSudoRequired     = errors.New("recent authentication required")
	ErrInvalidToken     = errors.New("invalid token")
)

// Account errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMFANotEnabled       = errors.New("MFA is not enabled for this account")
	ErrInvalidMFACode      = errors.New("invalid MFA code")
	ErrIntegrationNotFound = errors.New("integration not found")
)

// ValidationError aggregates per-field rejections of an update request.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty validation error.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a rejection for field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = message
}

// Empty returns true if no field was rejected.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// ErrOrNil returns e when it holds rejections, otherwise nil.
func (e *ValidationError) ErrOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError reports a uniqueness violation detected at commit time.
type ConflictError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
