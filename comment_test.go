package collab_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collab "github.com/opencrm/collab.go"
	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

func TestAddCommentRequiresSession(t *testing.T) {
	e, _ := newTestEngine(t, alice)

	_, err := e.AddComment("hello", nil)
	assert.True(t, errors.Is(err, collab.ErrNoSession))
}

func TestAddCommentStoredOnEcho(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)
	conn.Reset()

	comment, err := e.AddComment("looks low to me", &collab.CommentOptions{
		FieldPath:  "amount",
		QuotedText: "2500",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, alice.ID, comment.AuthorID)
	assert.Equal(t, models.CommentOpen, comment.Status)
	assert.Equal(t, "amount", comment.FieldPath)

	sent := conn.SentOfType(protocol.CommentAdd)
	require.Len(t, sent, 1)
	var payload protocol.CommentPayload
	decodePayload(t, sent[0], &payload)
	assert.Equal(t, comment.ID, payload.Comment.ID)

	// Not visible until the relay echoes it back.
	assert.Empty(t, e.Comments())

	inject(t, conn, protocol.CommentAdded, "session:opportunity:42", &payload, alice.ID)
	comments := e.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)

	// Redelivery of the same comment is a no-op.
	inject(t, conn, protocol.CommentAdded, "session:opportunity:42", &payload, alice.ID)
	assert.Len(t, e.Comments(), 1)
}

func TestReplyNestsUnderParent(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)
	channel := "session:opportunity:42"

	inject(t, conn, protocol.CommentAdded, channel, &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-1", Content: "root", AuthorID: bob.ID},
	}, bob.ID)
	inject(t, conn, protocol.CommentAdded, channel, &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-2", Content: "reply", AuthorID: carol.ID, ParentID: "cm-1"},
	}, carol.ID)
	// A reply that names only the thread root nests under it too.
	inject(t, conn, protocol.CommentAdded, channel, &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-3", Content: "nested reply", AuthorID: alice.ID, ParentID: "cm-2", ThreadID: "cm-1"},
	}, alice.ID)

	comments := e.Comments()
	require.Len(t, comments, 1)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "cm-2", comments[0].Replies[0].ID)
	require.Len(t, comments[0].Replies[0].Replies, 1)
	assert.Equal(t, "cm-3", comments[0].Replies[0].Replies[0].ID)
}

func TestReplyWithUnknownParentSurfacesTopLevel(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)

	inject(t, conn, protocol.CommentAdded, "session:opportunity:42", &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-orphan", Content: "lost reply", AuthorID: bob.ID, ParentID: "gone"},
	}, bob.ID)

	comments := e.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "cm-orphan", comments[0].ID)
}

func TestCommentDefaultsFilledFromFrame(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)

	inject(t, conn, protocol.CommentAdded, "session:opportunity:42", &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-1", Content: "bare"},
	}, bob.ID)

	comments := e.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, bob.ID, comments[0].AuthorID)
	assert.Equal(t, models.CommentOpen, comments[0].Status)
}

func TestResolveComment(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)
	channel := "session:opportunity:42"

	inject(t, conn, protocol.CommentAdded, channel, &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-1", Content: "root", AuthorID: bob.ID},
	}, bob.ID)
	conn.Reset()

	require.NoError(t, e.ResolveComment("cm-1"))

	sent := conn.SentOfType(protocol.CommentResolve)
	require.Len(t, sent, 1)
	var payload protocol.CommentResolvePayload
	decodePayload(t, sent[0], &payload)
	assert.Equal(t, "cm-1", payload.CommentID)

	comments := e.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, models.CommentResolved, comments[0].Status)
	require.NotNil(t, comments[0].ResolvedAt)

	assert.True(t, errors.Is(e.ResolveComment("nope"), collab.ErrUnknownComment))
}

func TestCommentResolvedFrame(t *testing.T) {
	e, conn := newTestEngine(t, alice)

	_, err := e.JoinSession("opportunity", "42")
	require.NoError(t, err)
	channel := "session:opportunity:42"

	inject(t, conn, protocol.CommentAdded, channel, &protocol.CommentPayload{
		Comment: models.Comment{ID: "cm-1", Content: "root", AuthorID: alice.ID},
	}, alice.ID)
	inject(t, conn, protocol.CommentResolved, channel,
		&protocol.CommentResolvePayload{CommentID: "cm-1"}, bob.ID)

	comments := e.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, models.CommentResolved, comments[0].Status)
	require.NotNil(t, comments[0].ResolvedAt)
	assert.False(t, comments[0].ResolvedAt.IsZero())
}
