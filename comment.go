package collab

import (
	"time"

	"github.com/google/uuid"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// CommentOptions anchors a new comment to a field, a selection, or quoted
// text, and threads it under a parent when set.
type CommentOptions struct {
	FieldPath  string
	Selection  *models.SelectionRange
	QuotedText string
	ParentID   string
	ThreadID   string
}

// AddComment posts a comment scoped to the current session's entity and
// returns it optimistically: open status, no replies. The comment enters the
// local thread set when its comment:added echo arrives, which keeps the
// thread set single-sourced from the dispatch path.
func (e *Engine) AddComment(content string, opts *CommentOptions) (*models.Comment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrNoSession
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		AuthorID:  e.localUser.ID,
		Status:    models.CommentOpen,
		CreatedAt: time.Now().UTC(),
	}
	if opts != nil {
		comment.FieldPath = opts.FieldPath
		comment.QuotedText = opts.QuotedText
		comment.ParentID = opts.ParentID
		comment.ThreadID = opts.ThreadID
		if opts.Selection != nil {
			sel := *opts.Selection
			comment.Selection = &sel
		}
	}

	if err := e.send(protocol.CommentAdd, e.session.Channel(), &protocol.CommentPayload{
		Comment: comment,
	}); err != nil {
		return nil, err
	}

	out := comment
	return &out, nil
}

// ResolveComment marks a comment resolved and announces the resolution.
// There is no un-resolve.
func (e *Engine) ResolveComment(commentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	comment := e.findCommentLocked(commentID)
	if comment == nil {
		return ErrUnknownComment
	}

	var channel string
	if e.session != nil {
		channel = e.session.Channel()
	}

	if err := e.send(protocol.CommentResolve, channel, &protocol.CommentResolvePayload{
		CommentID: commentID,
	}); err != nil {
		return err
	}

	now := time.Now().UTC()
	comment.Status = models.CommentResolved
	comment.ResolvedAt = &now

	return nil
}

// Comments returns a deep copy of the comment tree, top-level entries in
// arrival order.
func (e *Engine) Comments() []models.Comment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Comment, 0, len(e.comments))
	for _, c := range e.comments {
		out = append(out, copyComment(c))
	}
	return out
}

func copyComment(c *models.Comment) models.Comment {
	cp := *c
	if c.Selection != nil {
		sel := *c.Selection
		cp.Selection = &sel
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	cp.Replies = nil
	for _, r := range c.Replies {
		rc := copyComment(r)
		cp.Replies = append(cp.Replies, &rc)
	}
	return cp
}

func (e *Engine) findCommentLocked(id string) *models.Comment {
	for _, c := range e.comments {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

func (e *Engine) applyCommentAdded(msg *protocol.Message, payload *protocol.CommentPayload) {
	comment := payload.Comment
	if comment.ID == "" {
		return
	}
	if comment.AuthorID == "" {
		comment.AuthorID = msg.SenderID
	}
	if comment.Status == "" {
		comment.Status = models.CommentOpen
	}
	if e.findCommentLocked(comment.ID) != nil {
		return
	}

	// A reply nests under its parent, or failing that under its thread root.
	// Only if neither is known does it surface top-level.
	if comment.ParentID != "" || comment.ThreadID != "" {
		parent := e.findCommentLocked(comment.ParentID)
		if parent == nil {
			parent = e.findCommentLocked(comment.ThreadID)
		}
		if parent != nil {
			parent.Replies = append(parent.Replies, &comment)
			return
		}
	}

	e.comments = append(e.comments, &comment)
}

func (e *Engine) applyCommentResolved(msg *protocol.Message, payload *protocol.CommentResolvePayload) {
	comment := e.findCommentLocked(payload.CommentID)
	if comment == nil {
		return
	}

	resolvedAt := msg.Timestamp
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	comment.Status = models.CommentResolved
	comment.ResolvedAt = &resolvedAt
}
