// Package collab is the client-side realtime collaboration engine of the
// CRM: it lets multiple users view and edit the same record concurrently
// over one persistent WebSocket connection, with live presence, cursors,
// typing indicators, field locks, optimistic versioned changes with conflict
// surfacing, and threaded comments.
//
// The engine accepts intents (join/leave session, apply change, move cursor,
// acquire/release lock, post comment, update presence) and emits events that
// callers subscribe to by frame type. It holds no document model: remote
// changes are queued for the consumer to fold into its own state.
//
// A minimal embedding:
//
//	cfg := collab.NewConfig("ws://crm.example.com", models.User{ID: "u-1", Name: "Ada"})
//	engine, err := collab.New(cfg)
//	if err != nil {
//		// handle
//	}
//	if err := engine.Connect(ctx); err != nil {
//		// handle
//	}
//	session, err := engine.JoinSession("opportunity", "42")
//
// All mutating operations apply an optimistic local effect and return
// immediately; the authoritative outcome arrives later as an ordinary
// inbound frame and is reconciled by the same dispatch path.
package collab
