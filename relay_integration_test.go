package collab_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collab "github.com/opencrm/collab.go"
	"github.com/opencrm/collab.go/internal/fakerelay"
	"github.com/opencrm/collab.go/pkg/logger"
	"github.com/opencrm/collab.go/pkg/models"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

// startEngine dials a live engine against the given relay URL.
func startEngine(t *testing.T, baseURL string, user models.User) *collab.Engine {
	t.Helper()

	cfg := collab.NewConfig(baseURL, user)
	cfg.Logger = logger.New(io.Discard)

	e, err := collab.New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Connect(context.Background()))
	t.Cleanup(func() {
		_ = e.Close(context.Background())
	})

	return e
}

func TestTwoClientsOverRelay(t *testing.T) {
	relay := fakerelay.New()
	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	baseURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ea := startEngine(t, baseURL, alice)
	eb := startEngine(t, baseURL, bob)

	require.Eventually(t, func() bool {
		return relay.ClientCount() == 2
	}, waitFor, tick)

	// Both clients converge on a two-person roster.
	_, err := ea.JoinSession("opportunity", "42")
	require.NoError(t, err)
	_, err = eb.JoinSession("opportunity", "42")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(ea.Participants()) == 2 && len(eb.Participants()) == 2
	}, waitFor, tick)

	// Each side colored its peer as the second joiner.
	pa := ea.Session().Participant(bob.ID)
	require.NotNil(t, pa)
	assert.Equal(t, models.Palette[1], pa.Color)
	pb := eb.Session().Participant(alice.ID)
	require.NotNil(t, pb)
	assert.Equal(t, models.Palette[1], pb.Color)

	// Cursor broadcast reaches the peer but never loops back.
	require.NoError(t, eb.UpdateCursor(models.CursorPosition{FieldPath: "notes", Offset: 12}))
	require.Eventually(t, func() bool {
		p := ea.Session().Participant(bob.ID)
		return p != nil && p.Cursor != nil && p.Cursor.Offset == 12
	}, waitFor, tick)
	assert.Nil(t, eb.Session().Participant(bob.ID).Cursor)

	// A change by alice lands on both sides with the relay's version.
	change, err := ea.ApplyChange(collab.ChangeRequest{
		FieldPath: "amount",
		Type:      models.ChangeReplace,
		OldValue:  1000,
		NewValue:  2500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), change.Version)

	require.Eventually(t, func() bool {
		return ea.Version() == 1 && eb.Version() == 1 && len(eb.PendingChanges()) == 1
	}, waitFor, tick)
	assert.Empty(t, ea.PendingChanges())

	// A lock held by alice blocks bob, and releasing it unblocks him.
	lock, err := ea.AcquireLock("amount")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return eb.IsFieldLocked("amount")
	}, waitFor, tick)

	holder := eb.FieldLockHolder("amount")
	require.NotNil(t, holder)
	assert.Equal(t, alice.ID, holder.ID)
	assert.Equal(t, alice.Name, holder.Name)
	_, err = eb.AcquireLock("amount")
	assert.ErrorIs(t, err, collab.ErrFieldLocked)

	require.NoError(t, ea.ReleaseLock(lock.ID))
	require.Eventually(t, func() bool {
		return !eb.IsFieldLocked("amount")
	}, waitFor, tick)

	// Comments replicate to both sides, the author included.
	_, err = ea.AddComment("can we justify this number?", &collab.CommentOptions{FieldPath: "amount"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(ea.Comments()) == 1 && len(eb.Comments()) == 1
	}, waitFor, tick)

	// Leaving shrinks the peer's roster.
	require.NoError(t, eb.LeaveSession())
	require.Eventually(t, func() bool {
		return len(ea.Participants()) == 1
	}, waitFor, tick)
}

func TestAutoReconnectRestoresSession(t *testing.T) {
	relay := fakerelay.New()
	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	baseURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ea := startEngine(t, baseURL, alice)

	cfg := collab.NewConfig(baseURL, bob)
	cfg.Logger = logger.New(io.Discard)
	cfg.ReconnectInterval = 20 * time.Millisecond
	eb, err := collab.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eb.Connect(context.Background()))
	t.Cleanup(func() {
		_ = eb.Close(context.Background())
	})

	_, err = ea.JoinSession("opportunity", "42")
	require.NoError(t, err)
	_, err = eb.JoinSession("opportunity", "42")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(ea.Participants()) == 2 && len(eb.Participants()) == 2
	}, waitFor, tick)

	// Sever bob's socket server-side; the relay forgets his subscriptions.
	dropped := eb.ConnectionID()
	relay.DropClient(bob.ID)

	require.Eventually(t, func() bool {
		return eb.IsConnected() && eb.ConnectionID() != dropped
	}, waitFor, tick)

	// The fresh connection re-announced bob online.
	require.Eventually(t, func() bool {
		p, ok := ea.PresenceOf(bob.ID)
		return ok && p.Status == models.StatusOnline
	}, waitFor, tick)

	// Bob's session channel was re-subscribed: alice's cursor reaches him
	// again. Re-send each poll since the resubscription races the first send.
	require.Eventually(t, func() bool {
		if err := ea.UpdateCursor(models.CursorPosition{FieldPath: "notes", Offset: 9}); err != nil {
			return false
		}
		p := eb.Session().Participant(alice.ID)
		return p != nil && p.Cursor != nil && p.Cursor.Offset == 9
	}, waitFor, tick)

	// And his rejoin kept alice's roster intact, not duplicated.
	assert.Len(t, ea.Participants(), 2)
}

func TestPresencePropagatesOverRelay(t *testing.T) {
	relay := fakerelay.New()
	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	baseURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ea := startEngine(t, baseURL, alice)
	eb := startEngine(t, baseURL, bob)

	require.Eventually(t, func() bool {
		return relay.ClientCount() == 2
	}, waitFor, tick)

	// The connection announces "online" on open; alice sees bob arrive.
	require.Eventually(t, func() bool {
		p, ok := ea.PresenceOf(bob.ID)
		return ok && p.Status == models.StatusOnline
	}, waitFor, tick)

	require.NoError(t, eb.SetStatus(models.StatusBusy, "demo call"))
	require.Eventually(t, func() bool {
		p, ok := ea.PresenceOf(bob.ID)
		return ok && p.Status == models.StatusBusy && p.StatusMessage == "demo call"
	}, waitFor, tick)

	require.NoError(t, eb.UpdateLocation("/opportunities/42"))
	require.Eventually(t, func() bool {
		p, _ := ea.PresenceOf(bob.ID)
		return p.Location == "/opportunities/42"
	}, waitFor, tick)

	require.NoError(t, eb.StartTyping("notes"))
	require.Eventually(t, func() bool {
		return len(ea.TypingIn("notes")) == 1
	}, waitFor, tick)

	// Disconnecting takes the user out of the presence map.
	require.NoError(t, eb.Close(context.Background()))
	require.Eventually(t, func() bool {
		_, ok := ea.PresenceOf(bob.ID)
		return !ok
	}, waitFor, tick)
}
