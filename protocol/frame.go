// Package protocol frames and parses discrete JSON messages over a raw
// byte stream. It knows nothing about chat semantics.
package protocol

// ClientFrame is one decoded inbound message. The wire format is flat
// newline-delimited JSON; unused fields stay at their zero value.
type ClientFrame struct {
	// Pre-auth frames carry an action instead of a type.
	Action   string `json:"action,omitempty"`
	Type     string `json:"type,omitempty"`
	Username string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`

	RoomName    string `json:"room_name,omitempty"`
	Description string `json:"description,omitempty"`
	Search      string `json:"search,omitempty"`

	Content string `json:"content,omitempty"`
	Target  string `json:"target,omitempty"`
}

// HistoryMessage is the client-facing shape of one stored message.
type HistoryMessage struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Kind      string `json:"message_type"`
	Timestamp string `json:"timestamp"`
}

// RoomEntry is the client-facing shape of one room in a listing.
type RoomEntry struct {
	Name        string `json:"name"`
	Creator     string `json:"creator,omitempty"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	UserCount   int    `json:"user_count"`
	CreatedAt   string `json:"created_at"`
}

// ServerFrame is one outbound message. Auth replies use Status, everything
// else uses Type. Fields are omitted when empty so each frame stays flat.
type ServerFrame struct {
	Status  string `json:"status,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`

	Username    string `json:"username,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Room        string `json:"room,omitempty"`
	RoomName    string `json:"room_name,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`

	Users    []string         `json:"users,omitempty"`
	Rooms    []RoomEntry      `json:"rooms,omitempty"`
	Messages []HistoryMessage `json:"messages,omitempty"`
	Count    int              `json:"count,omitempty"`
}

// Outbound frame types.
const (
	TypeError             = "error"
	TypeSystem            = "system"
	TypeMessage           = "message"
	TypePrivate           = "private"
	TypePrivateSent       = "private_sent"
	TypeRoomCreated       = "room_created"
	TypeRoomList          = "room_list"
	TypeRoomJoined        = "room_joined"
	TypeRoomLeft          = "room_left"
	TypeRoomUsers         = "room_users"
	TypeRoomDeleted       = "room_deleted"
	TypeRoomDeleteSuccess = "room_delete_success"
	TypeChatHistory       = "chat_history"
	TypeMyRooms           = "my_rooms"
	TypeGoodbye           = "goodbye"
)

// ErrorFrame builds the generic user-visible error reply.
func ErrorFrame(message string) ServerFrame {
	return ServerFrame{Type: TypeError, Message: message}
}

// SystemFrame builds a server-generated room notice.
func SystemFrame(message, timestamp string) ServerFrame {
	return ServerFrame{
		Type:      TypeSystem,
		Username:  "System",
		Message:   message,
		Timestamp: timestamp,
	}
}
