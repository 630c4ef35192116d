package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind discriminates what a message is and whether it persists.
// Private messages are delivered live only and never stored.
type MessageKind string

const (
	KindChat    MessageKind = "message"
	KindSystem  MessageKind = "system"
	KindPrivate MessageKind = "private"
)

// Message represents an immutable chat event scoped to a room.
type Message struct {
	ID        uuid.UUID
	Room      string
	Sender    string
	Content   string
	Kind      MessageKind
	CreatedAt time.Time
}

// SystemSender is the reserved author name for server-generated notices.
const SystemSender = "System"
