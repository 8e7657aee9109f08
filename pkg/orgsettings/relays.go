package orgsettings

import (
	"time"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// RelayMerge is the outcome of merging an incoming trusted relay list.
type RelayMerge struct {
	Relays   []domain.TrustedRelay
	Modified bool
}

// MergeTrustedRelays merges incoming relays into the stored list keyed by
// public key. existed distinguishes a missing option from an empty one.
// Neither input slice is mutated.
func MergeTrustedRelays(existing []domain.TrustedRelay, existed bool, incoming []domain.TrustedRelay, now time.Time) RelayMerge {
	byKey := make(map[string]domain.TrustedRelay, len(existing))
	for _, r := range existing {
		byKey[r.PublicKey] = r
	}

	originalCount := 0
	if existed {
		originalCount = len(existing)
	}

	merged := make([]domain.TrustedRelay, 0, len(incoming))
	modified := false
	for _, in := range incoming {
		out := domain.TrustedRelay{
			PublicKey:   in.PublicKey,
			Name:        in.Name,
			Description: in.Description,
		}

		prior, seen := byKey[in.PublicKey]
		if seen {
			out.Created = timePtr(prior.Created)
			out.LastModified = timePtr(prior.LastModified)
		}
		if out.Created == nil {
			out.Created = timePtr(&now)
		}

		if !seen || prior.Name != in.Name || prior.Description != in.Description {
			out.LastModified = timePtr(&now)
			modified = true
		}
		merged = append(merged, out)
	}

	// Deletions leave no trace in the loop above.
	if len(incoming) != originalCount {
		modified = true
	}

	return RelayMerge{Relays: merged, Modified: modified}
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
