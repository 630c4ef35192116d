package command

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"mystiko/domain"
	"mystiko/protocol"
)

func TestParse_StructuredFrames(t *testing.T) {
	tests := []struct {
		name     string
		frame    protocol.ClientFrame
		expected domain.Action
	}{
		{
			name:     "login",
			frame:    protocol.ClientFrame{Action: "login", Username: " alice ", Password: lo.ToPtr("alice123")},
			expected: domain.LoginAction{Username: "alice", Password: "alice123"},
		},
		{
			name:     "register",
			frame:    protocol.ClientFrame{Action: "register", Username: "bob", Password: lo.ToPtr("bob123")},
			expected: domain.RegisterAction{Username: "bob", Password: "bob123"},
		},
		{
			name:     "create room",
			frame:    protocol.ClientFrame{Type: "create_room", RoomName: "General", Description: "chit chat"},
			expected: domain.CreateRoomAction{Name: "General", Description: "chit chat"},
		},
		{
			name:     "join room",
			frame:    protocol.ClientFrame{Type: "join_room", RoomName: " General "},
			expected: domain.JoinRoomAction{Name: "General"},
		},
		{
			name:     "leave room",
			frame:    protocol.ClientFrame{Type: "leave_room"},
			expected: domain.LeaveRoomAction{},
		},
		{
			name:     "delete room",
			frame:    protocol.ClientFrame{Type: "delete_room", RoomName: "General"},
			expected: domain.DeleteRoomAction{Name: "General"},
		},
		{
			name:     "list rooms with search",
			frame:    protocol.ClientFrame{Type: "list_rooms", Search: "tech"},
			expected: domain.ListRoomsAction{Search: "tech"},
		},
		{
			name:     "plain message",
			frame:    protocol.ClientFrame{Type: "message", Content: "hello world"},
			expected: domain.SendMessageAction{Content: "hello world"},
		},
		{
			name:     "private message frame",
			frame:    protocol.ClientFrame{Type: "private", Target: "bob", Content: "hi"},
			expected: domain.PrivateMessageAction{Target: "bob", Content: "hi"},
		},
		{
			name:     "room users",
			frame:    protocol.ClientFrame{Type: "get_room_users", RoomName: "General"},
			expected: domain.ListUsersAction{Room: "General"},
		},
		{
			name:     "my rooms",
			frame:    protocol.ClientFrame{Type: "get_my_rooms"},
			expected: domain.MyRoomsAction{},
		},
		{
			name:     "logout",
			frame:    protocol.ClientFrame{Type: "logout"},
			expected: domain.LogoutAction{},
		},
		{
			name:     "unknown type",
			frame:    protocol.ClientFrame{Type: "fly_to_the_moon"},
			expected: domain.UnknownAction{Input: "fly_to_the_moon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Parse(&tt.frame))
		})
	}
}

func TestParse_SlashCommands(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected domain.Action
	}{
		{
			name:     "pm",
			content:  "/pm bob hello there",
			expected: domain.PrivateMessageAction{Target: "bob", Content: "hello there"},
		},
		{
			name:     "pm without message",
			expected: domain.UnknownAction{Input: "/pm bob"},
			content:  "/pm bob",
		},
		{
			name:     "users",
			content:  "/users",
			expected: domain.ListUsersAction{},
		},
		{
			name:     "leave",
			content:  "/leave",
			expected: domain.LeaveRoomAction{},
		},
		{
			name:     "logout",
			content:  "/logout",
			expected: domain.LogoutAction{},
		},
		{
			name:     "help is a server-side no-op",
			content:  "/help",
			expected: domain.NoOpAction{},
		},
		{
			name:     "clear is a server-side no-op",
			content:  "/clear",
			expected: domain.NoOpAction{},
		},
		{
			name:     "uppercase verb",
			content:  "/USERS",
			expected: domain.ListUsersAction{},
		},
		{
			name:     "unknown command",
			content:  "/teleport home",
			expected: domain.UnknownAction{Input: "/teleport home"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := protocol.ClientFrame{Type: "message", Content: tt.content}
			require.Equal(t, tt.expected, Parse(&frame))
		})
	}
}
