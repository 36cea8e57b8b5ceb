package websocket

import "github.com/google/uuid"

type SocketMessageType int

const (
	// Update messages push fresh server state to interested clients.
	Update SocketMessageType = iota
	// Welcome is sent once to each newly-connected client, carrying the
	// initial state payload so the client need not wait for an Update.
	Welcome
)

// SocketMessage is the JSON frame exchanged with connected clients. Target
// restricts delivery to the client with a matching ID; a nil Target
// broadcasts.
type SocketMessage struct {
	Title  string            `json:"title"`
	Body   map[string]any    `json:"arguments"`
	Type   SocketMessageType `json:"type"`
	Target *uuid.UUID        `json:"-"`
}
