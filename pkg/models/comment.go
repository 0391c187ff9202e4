package models

import "time"

// CommentStatus is the lifecycle state of a comment thread.
type CommentStatus string

const (
	CommentOpen     CommentStatus = "open"
	CommentResolved CommentStatus = "resolved"
	CommentWontFix  CommentStatus = "wont_fix"
)

// Comment is a content-anchored discussion entry. A comment may be anchored
// to a field path, a text selection, or quoted text. Replies carry the parent
// (or thread root) id and are nested under it rather than becoming top-level
// entries.
type Comment struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	FieldPath  string          `json:"fieldPath,omitempty"`
	Selection  *SelectionRange `json:"selection,omitempty"`
	QuotedText string          `json:"quotedText,omitempty"`
	AuthorID   string          `json:"authorId"`
	ParentID   string          `json:"parentId,omitempty"`
	ThreadID   string          `json:"threadId,omitempty"`
	Status     CommentStatus   `json:"status"`
	Replies    []*Comment      `json:"replies,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
}

// Find walks the comment and its replies looking for the given id.
func (c *Comment) Find(id string) *Comment {
	if c.ID == id {
		return c
	}
	for _, r := range c.Replies {
		if found := r.Find(id); found != nil {
			return found
		}
	}
	return nil
}
