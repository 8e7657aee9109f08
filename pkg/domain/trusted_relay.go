package domain

import "time"

// TrustedRelay is one allow-listed external relay, identified by public key.
type TrustedRelay struct {
	PublicKey    string     `json:"public_key"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Created      *time.Time `json:"created,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}
