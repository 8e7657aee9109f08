package orgsettings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

func relay(key, name string, created, modified time.Time) domain.TrustedRelay {
	return domain.TrustedRelay{PublicKey: key, Name: name, Created: &created, LastModified: &modified}
}

func TestMergeTrustedRelays(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	existing := []domain.TrustedRelay{
		relay("abc", "r1", t0, t0),
		relay("def", "r2", t0, t1),
	}

	t.Run("identical content is not modified", func(t *testing.T) {
		incoming := []domain.TrustedRelay{
			{PublicKey: "abc", Name: "r1"},
			{PublicKey: "def", Name: "r2"},
		}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.False(t, got.Modified)
		require.Len(t, got.Relays, 2)
		assert.Equal(t, t0, *got.Relays[0].Created)
		assert.Equal(t, t0, *got.Relays[0].LastModified)
		assert.Equal(t, t1, *got.Relays[1].LastModified)
	})

	t.Run("name change touches only that entry", func(t *testing.T) {
		incoming := []domain.TrustedRelay{
			{PublicKey: "abc", Name: "renamed"},
			{PublicKey: "def", Name: "r2"},
		}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.True(t, got.Modified)
		assert.Equal(t, t0, *got.Relays[0].Created)
		assert.Equal(t, now, *got.Relays[0].LastModified)
		assert.Equal(t, t0, *got.Relays[1].Created)
		assert.Equal(t, t1, *got.Relays[1].LastModified)
	})

	t.Run("description change is a modification", func(t *testing.T) {
		incoming := []domain.TrustedRelay{
			{PublicKey: "abc", Name: "r1", Description: "edge"},
			{PublicKey: "def", Name: "r2"},
		}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.True(t, got.Modified)
		assert.Equal(t, now, *got.Relays[0].LastModified)
	})

	t.Run("removing an entry is a modification", func(t *testing.T) {
		incoming := []domain.TrustedRelay{{PublicKey: "abc", Name: "r1"}}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.True(t, got.Modified)
		require.Len(t, got.Relays, 1)
		assert.Equal(t, t0, *got.Relays[0].LastModified)
	})

	t.Run("same count swap is a modification", func(t *testing.T) {
		incoming := []domain.TrustedRelay{
			{PublicKey: "abc", Name: "r1"},
			{PublicKey: "xyz", Name: "r3"},
		}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.True(t, got.Modified)
		assert.Equal(t, now, *got.Relays[1].Created)
		assert.Equal(t, now, *got.Relays[1].LastModified)
	})

	t.Run("first write stamps created and last modified", func(t *testing.T) {
		incoming := []domain.TrustedRelay{{PublicKey: "abc", Name: "r1"}}
		got := MergeTrustedRelays(nil, false, incoming, now)

		assert.True(t, got.Modified)
		assert.Equal(t, *got.Relays[0].Created, *got.Relays[0].LastModified)
		assert.Equal(t, now, *got.Relays[0].Created)
	})

	t.Run("clearing an absent option is not modified", func(t *testing.T) {
		got := MergeTrustedRelays(nil, false, []domain.TrustedRelay{}, now)
		assert.False(t, got.Modified)
		assert.Empty(t, got.Relays)
	})

	t.Run("client supplied timestamps are ignored", func(t *testing.T) {
		forged := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
		incoming := []domain.TrustedRelay{
			{PublicKey: "abc", Name: "r1", Created: &forged, LastModified: &forged},
			{PublicKey: "def", Name: "r2"},
		}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.Equal(t, t0, *got.Relays[0].Created)
		assert.Equal(t, t0, *got.Relays[0].LastModified)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		incoming := []domain.TrustedRelay{{PublicKey: "abc", Name: "changed"}}
		got := MergeTrustedRelays(existing, true, incoming, now)

		assert.Nil(t, incoming[0].Created)
		assert.Equal(t, "r1", existing[0].Name)
		assert.Equal(t, t0, *existing[0].LastModified)

		*got.Relays[0].Created = forgedTime()
		assert.Equal(t, t0, *existing[0].Created)
	})
}

func forgedTime() time.Time {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
}
