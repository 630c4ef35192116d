// Package command turns decoded frames into tagged actions. It is a pure
// parse step: no registry, storage, or network access happens here.
package command

import (
	"strings"

	"mystiko/domain"
	"mystiko/protocol"
)

// Inbound frame types and pre-auth actions recognized on the wire.
const (
	actionLogin    = "login"
	actionRegister = "register"

	typeCreateRoom   = "create_room"
	typeListRooms    = "list_rooms"
	typeJoinRoom     = "join_room"
	typeLeaveRoom    = "leave_room"
	typeDeleteRoom   = "delete_room"
	typeMessage      = "message"
	typePrivate      = "private"
	typeGetRoomUsers = "get_room_users"
	typeGetMyRooms   = "get_my_rooms"
	typeLogout       = "logout"
)

// Parse classifies one decoded frame. Text commands prefixed with "/"
// inside a chat message map onto the same action taxonomy as structured
// frames. Anything unrecognized becomes an UnknownAction; the dispatcher
// answers those with a user-visible error.
func Parse(frame *protocol.ClientFrame) domain.Action {
	switch frame.Action {
	case actionLogin:
		return domain.LoginAction{
			Username: strings.TrimSpace(frame.Username),
			Password: stringValue(frame.Password),
		}
	case actionRegister:
		return domain.RegisterAction{
			Username: strings.TrimSpace(frame.Username),
			Password: stringValue(frame.Password),
		}
	}

	switch frame.Type {
	case typeCreateRoom:
		return domain.CreateRoomAction{
			Name:        strings.TrimSpace(frame.RoomName),
			Description: strings.TrimSpace(frame.Description),
			Password:    frame.Password,
		}
	case typeListRooms:
		return domain.ListRoomsAction{Search: strings.TrimSpace(frame.Search)}
	case typeJoinRoom:
		return domain.JoinRoomAction{
			Name:     strings.TrimSpace(frame.RoomName),
			Password: frame.Password,
		}
	case typeLeaveRoom:
		return domain.LeaveRoomAction{}
	case typeDeleteRoom:
		return domain.DeleteRoomAction{Name: strings.TrimSpace(frame.RoomName)}
	case typeMessage:
		return parseMessage(frame.Content)
	case typePrivate:
		return domain.PrivateMessageAction{
			Target:  strings.TrimSpace(frame.Target),
			Content: strings.TrimSpace(frame.Content),
		}
	case typeGetRoomUsers:
		return domain.ListUsersAction{Room: strings.TrimSpace(frame.RoomName)}
	case typeGetMyRooms:
		return domain.MyRoomsAction{}
	case typeLogout:
		return domain.LogoutAction{}
	}

	input := frame.Type
	if input == "" {
		input = frame.Action
	}
	return domain.UnknownAction{Input: input}
}

// parseMessage handles chat content, including slash commands a
// non-conforming client forwarded instead of intercepting locally.
func parseMessage(content string) domain.Action {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "/") {
		return domain.SendMessageAction{Content: trimmed}
	}

	verb, rest, _ := strings.Cut(trimmed, " ")
	switch strings.ToLower(verb) {
	case "/pm":
		target, message, ok := strings.Cut(strings.TrimSpace(rest), " ")
		message = strings.TrimSpace(message)
		if !ok || target == "" || message == "" {
			return domain.UnknownAction{Input: trimmed}
		}
		return domain.PrivateMessageAction{Target: target, Content: message}
	case "/users":
		return domain.ListUsersAction{}
	case "/leave":
		return domain.LeaveRoomAction{}
	case "/logout":
		return domain.LogoutAction{}
	case "/help", "/clear":
		// Client-local commands. The server tolerates them as no-ops.
		return domain.NoOpAction{}
	default:
		return domain.UnknownAction{Input: trimmed}
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
