package presence

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, h *Handle) []models.Participant {
	t.Helper()
	select {
	case roster, ok := <-h.Updates():
		require.True(t, ok, "updates closed")
		return roster
	case <-time.After(time.Second):
		t.Fatal("no roster update")
		return nil
	}
}

func eventually(t *testing.T, h *Handle, want func([]models.Participant) bool) []models.Participant {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case roster, ok := <-h.Updates():
			require.True(t, ok, "updates closed")
			if want(roster) {
				return roster
			}
		case <-deadline:
			t.Fatal("roster never matched")
			return nil
		}
	}
}

func TestRosterIsAuthoritativeReplacement(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()
	tracker := NewTracker(transport, nil)

	alice, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice"})
	require.NoError(t, err)
	bob, err := tracker.Join(ctx, "g1", models.Participant{ID: "p2", Name: "bob"})
	require.NoError(t, err)

	roster := eventually(t, alice, func(r []models.Participant) bool { return len(r) == 2 })
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, "bob", roster[1].Name)

	transport.Remove("g1", "p2")
	roster = eventually(t, alice, func(r []models.Participant) bool { return len(r) == 1 })
	assert.Equal(t, []models.Participant{{ID: "p1", Name: "Alice"}}, roster)

	require.NoError(t, bob.Leave(ctx))
	require.NoError(t, alice.Leave(ctx))
}

func TestRejoinWithSameKeyDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryTransport(), nil)

	first, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice"})
	require.NoError(t, err)
	second, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice (tab 2)"})
	require.NoError(t, err)

	roster := eventually(t, second, func(r []models.Participant) bool { return len(r) == 1 && r[0].Name == "Alice (tab 2)" })
	assert.Len(t, roster, 1)

	// the stale registration leaving must not remove the newer one
	require.NoError(t, first.Leave(ctx))
	roster = next(t, second)
	assert.Len(t, roster, 1)
	require.NoError(t, second.Leave(ctx))
}

func TestMalformedPayloadTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()
	tracker := NewTracker(transport, nil)

	h, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice"})
	require.NoError(t, err)
	defer h.Leave(ctx)

	transport.Put("g1", "x1", []byte(`"just a string"`))
	transport.Put("g1", "x2", []byte(`{"name": 42}`))
	transport.Put("g1", "x3", []byte(`{"name": "  "}`))
	transport.Put("g1", "p9", []byte(`{"name":"Dora","isSpectator":true}`))

	roster := eventually(t, h, func(r []models.Participant) bool { return len(r) == 2 })
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, models.Participant{ID: "p9", Name: "Dora", IsSpectator: true}, roster[1])
}

func TestAnnounceUpdatesRoleAndRejectsOtherKey(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryTransport(), nil)

	h, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice"})
	require.NoError(t, err)
	defer h.Leave(ctx)

	require.NoError(t, h.Announce(ctx, models.Participant{ID: "p1", Name: "Alice", IsSpectator: true}))
	roster := eventually(t, h, func(r []models.Participant) bool { return len(r) == 1 && r[0].IsSpectator })
	assert.Equal(t, "p1", roster[0].ID)

	err = h.Announce(ctx, models.Participant{ID: "p2", Name: "Mallory"})
	assert.True(t, models.IsValidation(err))
}

func TestLeaveClosesUpdatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryTransport(), nil)

	h, err := tracker.Join(ctx, "g1", models.Participant{ID: "p1", Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, h.Leave(ctx))
	require.NoError(t, h.Leave(ctx))

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-h.Updates():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestJoinValidates(t *testing.T) {
	tracker := NewTracker(NewMemoryTransport(), nil)
	_, err := tracker.Join(context.Background(), "", models.Participant{ID: "p1", Name: "A"})
	assert.True(t, models.IsValidation(err))
}

func TestDecodeMember(t *testing.T) {
	p, ok := DecodeMember("p1", []byte(` {"name":" Ada ","isSpectator":false,"extra":1}`))
	assert.True(t, ok)
	assert.Equal(t, models.Participant{ID: "p1", Name: "Ada"}, p)

	_, ok = DecodeMember("p1", []byte(`{"name":"Ada","isSpectator":"yes"}`))
	assert.False(t, ok)
	_, ok = DecodeMember("", []byte(`{"name":"Ada"}`))
	assert.False(t, ok)
	_, ok = DecodeMember("p1", nil)
	assert.False(t, ok)
}

func TestNATSKeyEncoding(t *testing.T) {
	entry := encodeToken("room with spaces/é") + "." + encodeToken("user_abc.def")
	key, ok := memberKey(entry)
	assert.True(t, ok)
	assert.Equal(t, "user_abc.def", key)

	_, ok = memberKey("nodot")
	assert.False(t, ok)
}

func TestPruneStale(t *testing.T) {
	now := time.Now()
	members := map[string]natsEntry{
		"fresh": {seen: now.Add(-5 * time.Second)},
		"stale": {seen: now.Add(-time.Minute)},
	}
	assert.True(t, pruneStale(members, now, 30*time.Second))
	assert.Contains(t, members, "fresh")
	assert.NotContains(t, members, "stale")
	assert.False(t, pruneStale(members, now, 0))
}
