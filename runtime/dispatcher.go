package runtime

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"mystiko/auth"
	"mystiko/domain"
	"mystiko/errors"
	"mystiko/moderation"
	"mystiko/protocol"
	"mystiko/repositories"
	"mystiko/services"
)

const (
	noticeTimeLayout  = "15:04:05"
	historyTimeLayout = "2006-01-02 15:04:05"
)

// Dispatcher executes parsed actions against the registry and the durable
// stores, and fans results out to the affected sessions.
//
// Each room has one broadcast commit point: a per-room mutex held across
// persist-and-fanout, so every member observes that room's messages in the
// same relative order. A failed persist suppresses the fanout entirely.
//
// Every chat-semantic failure is converted into a reply to the requester;
// nothing in here is fatal to a connection.
type Dispatcher struct {
	log         *slog.Logger
	registry    *Registry
	authService services.IAuthService
	rooms       repositories.IRoomRepository
	messages    repositories.IMessageRepository
	moderator   *moderation.Moderator
	limits      domain.Limits

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

func NewDispatcher(
	log *slog.Logger,
	registry *Registry,
	authService services.IAuthService,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	limits domain.Limits,
) *Dispatcher {
	return &Dispatcher{
		log:         log,
		registry:    registry,
		authService: authService,
		rooms:       rooms,
		messages:    messages,
		moderator:   moderator,
		limits:      limits,
		roomLocks:   make(map[string]*sync.Mutex),
	}
}

// Handle executes one action for one client. It reports whether the
// session should be closed afterwards (only logout does that; every error
// is reported to the client and the connection survives).
func (d *Dispatcher) Handle(client *Client, action domain.Action) (closed bool) {
	switch act := action.(type) {
	case domain.LoginAction:
		d.handleLogin(client, act)
	case domain.RegisterAction:
		d.handleRegister(client, act)
	case domain.NoOpAction:
		// Client-local command forwarded anyway; ignore.
	case domain.LogoutAction:
		d.HandleDisconnect(client)
		client.sink.Deliver(protocol.ServerFrame{Type: protocol.TypeGoodbye, Message: "Goodbye!"})
		return true
	case domain.UnknownAction:
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf("Unknown command: %s", act.Input)))
	default:
		if !client.Authenticated() {
			client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "You must log in first"})
			return false
		}
		d.handleAuthenticated(client, action)
	}
	return false
}

func (d *Dispatcher) handleAuthenticated(client *Client, action domain.Action) {
	switch act := action.(type) {
	case domain.CreateRoomAction:
		d.handleCreateRoom(client, act)
	case domain.JoinRoomAction:
		d.handleJoinRoom(client, act)
	case domain.LeaveRoomAction:
		d.handleLeaveRoom(client)
	case domain.DeleteRoomAction:
		d.handleDeleteRoom(client, act)
	case domain.ListRoomsAction:
		d.handleListRooms(client, act)
	case domain.MyRoomsAction:
		d.handleMyRooms(client)
	case domain.SendMessageAction:
		d.handleSendMessage(client, act)
	case domain.PrivateMessageAction:
		d.handlePrivateMessage(client, act)
	case domain.ListUsersAction:
		d.handleListUsers(client, act)
	}
}

// ============== Authentication ==============

func (d *Dispatcher) handleLogin(client *Client, act domain.LoginAction) {
	if client.Authenticated() {
		client.sink.Deliver(protocol.ErrorFrame("Already logged in"))
		return
	}
	if act.Username == "" || act.Password == "" {
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Username and password are required"})
		return
	}

	account, token, err := d.authService.Login(act.Username, act.Password)
	switch {
	case err == errors.ErrUserNotFound:
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "User not found. Please register first."})
		return
	case err == errors.ErrInvalidCredentials:
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Incorrect password"})
		return
	case err != nil:
		d.log.Error("Login failed", "username", act.Username, "error", err)
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Login failed"})
		return
	}

	if err := d.registry.Connect(account.Username, client.sink); err != nil {
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Already logged in from another session"})
		return
	}
	client.username = account.Username

	d.log.Info("Login successful", "username", account.Username)
	client.sink.Deliver(protocol.ServerFrame{
		Status:  "success",
		Message: fmt.Sprintf("Welcome back, %s!", account.Username),
		Token:   string(token),
	})
}

func (d *Dispatcher) handleRegister(client *Client, act domain.RegisterAction) {
	if client.Authenticated() {
		client.sink.Deliver(protocol.ErrorFrame("Already logged in"))
		return
	}
	if act.Username == "" || act.Password == "" {
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Username and password are required"})
		return
	}

	account, token, err := d.authService.Register(act.Username, act.Password)
	switch {
	case err == errors.ErrInvalidUsername:
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Username must be 3-20 alphanumeric characters"})
		return
	case err == errors.ErrInvalidPassword:
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Password must be at least 4 characters"})
		return
	case err == errors.ErrUserAlreadyExists:
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Username already exists"})
		return
	case err != nil:
		d.log.Error("Registration failed", "username", act.Username, "error", err)
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Failed to create account"})
		return
	}

	if err := d.registry.Connect(account.Username, client.sink); err != nil {
		client.sink.Deliver(protocol.ServerFrame{Status: "error", Message: "Already logged in from another session"})
		return
	}
	client.username = account.Username

	d.log.Info("Registration successful", "username", account.Username)
	client.sink.Deliver(protocol.ServerFrame{
		Status:  "success",
		Message: fmt.Sprintf("Account created successfully! Welcome, %s!", account.Username),
		Token:   string(token),
	})
}

// ============== Rooms ==============

func (d *Dispatcher) handleCreateRoom(client *Client, act domain.CreateRoomAction) {
	if err := auth.ValidateRoomName(act.Name, d.limits.MinRoomNameLength, d.limits.MaxRoomNameLength); err != nil {
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf(
			"Room name must be %d-%d characters: letters, numbers, spaces, hyphens, and underscores",
			d.limits.MinRoomNameLength, d.limits.MaxRoomNameLength)))
		return
	}

	description := act.Description
	if description == "" {
		description = "No description"
	}
	// Truncation counts runes, never splitting a multi-byte character.
	if utf8.RuneCountInString(description) > d.limits.MaxDescription {
		description = string([]rune(description)[:d.limits.MaxDescription])
	}

	var passwordHash string
	if act.Password != nil && *act.Password != "" {
		hashed, err := auth.HashPassword(*act.Password)
		if err != nil {
			d.log.Error("Room password hashing failed", "error", err)
			client.sink.Deliver(protocol.ErrorFrame("Failed to create room"))
			return
		}
		passwordHash = hashed
	}

	room, err := d.rooms.CreateRoom(act.Name, client.username, description, passwordHash)
	switch {
	case err == errors.ErrRoomAlreadyExists:
		client.sink.Deliver(protocol.ErrorFrame("A room with this name already exists"))
		return
	case err == errors.ErrRoomLimitReached:
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf(
			"You can only create %d room(s). Delete an existing room first.", d.limits.MaxRoomsPerUser)))
		return
	case err != nil:
		d.log.Error("Room creation failed", "room", act.Name, "error", err)
		client.sink.Deliver(protocol.ErrorFrame("Failed to create room"))
		return
	}

	d.log.Info("Room created", "room", room.Name, "creator", client.username)
	client.sink.Deliver(protocol.ServerFrame{
		Type:     protocol.TypeRoomCreated,
		RoomName: room.Name,
		Message:  fmt.Sprintf("Room %q created successfully!", room.Name),
	})
}

func (d *Dispatcher) handleJoinRoom(client *Client, act domain.JoinRoomAction) {
	room, err := d.rooms.GetRoom(act.Name)
	if err != nil {
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf("Room %q does not exist", act.Name)))
		return
	}

	if room.Private() {
		provided := ""
		if act.Password != nil {
			provided = *act.Password
		}
		match, err := auth.ComparePassword(provided, room.PasswordHash)
		if err != nil || !match {
			client.sink.Deliver(protocol.ErrorFrame("Incorrect room password"))
			return
		}
	}

	// Membership is granted under the room's broadcast lock, which a
	// deletion holds across delete-and-evict. Re-checking existence here
	// means a join can never slip in after the eviction sweep and leave a
	// live member inside a deleted room.
	lock := d.roomLock(room.Name)
	lock.Lock()
	if _, err := d.rooms.GetRoom(room.Name); err != nil {
		lock.Unlock()
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf("Room %q does not exist", act.Name)))
		return
	}
	previous, _ := d.registry.Join(client.username, room.Name)
	lock.Unlock()
	if previous != "" && !strings.EqualFold(previous, room.Name) {
		d.broadcastSystem(previous, fmt.Sprintf("🚪 %s left the room", client.username))
	}

	client.sink.Deliver(protocol.ServerFrame{
		Type:        protocol.TypeRoomJoined,
		RoomName:    room.Name,
		Creator:     room.Creator,
		Description: room.Description,
		Message:     fmt.Sprintf("Joined room %q!", room.Name),
	})

	d.sendHistory(client, room.Name)

	// The join notice goes to every member, the joiner included, so the
	// notice lands after the history in the joiner's own stream.
	d.broadcastSystem(room.Name, fmt.Sprintf("👋 %s joined the room!", client.username))

	client.sink.Deliver(protocol.ServerFrame{
		Type:     protocol.TypeRoomUsers,
		RoomName: room.Name,
		Users:    d.registry.MembersOf(room.Name),
	})

	d.log.Info("Joined room", "username", client.username, "room", room.Name)
}

func (d *Dispatcher) sendHistory(client *Client, room string) {
	history, err := d.messages.RecentMessages(room, d.limits.HistoryLimit)
	if err != nil {
		d.log.Error("History retrieval failed", "room", room, "error", err)
		return
	}
	if len(history) == 0 {
		return
	}
	client.sink.Deliver(protocol.ServerFrame{
		Type:     protocol.TypeChatHistory,
		RoomName: room,
		Count:    len(history),
		Messages: lo.Map(history, func(message domain.Message, _ int) protocol.HistoryMessage {
			return protocol.HistoryMessage{
				Username:  message.Sender,
				Content:   message.Content,
				Kind:      string(message.Kind),
				Timestamp: message.CreatedAt.Format(historyTimeLayout),
			}
		}),
	})
}

func (d *Dispatcher) handleLeaveRoom(client *Client) {
	room := d.registry.Leave(client.username)
	if room == "" {
		client.sink.Deliver(protocol.ErrorFrame("You are not in any room"))
		return
	}

	d.broadcastSystem(room, fmt.Sprintf("🚪 %s left the room", client.username))
	client.sink.Deliver(protocol.ServerFrame{
		Type:    protocol.TypeRoomLeft,
		Message: fmt.Sprintf("Left room %q", room),
	})
	d.log.Info("Left room", "username", client.username, "room", room)
}

func (d *Dispatcher) handleDeleteRoom(client *Client, act domain.DeleteRoomAction) {
	lock := d.roomLock(act.Name)
	lock.Lock()
	defer lock.Unlock()

	// Resolve the write paths before the live record disappears.
	sinks := d.registry.SinksForRoom(act.Name)

	err := d.rooms.DeleteRoom(act.Name, client.username)
	switch {
	case err == errors.ErrRoomNotFound:
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf("Room %q does not exist", act.Name)))
		return
	case err == errors.ErrNotRoomOwner:
		client.sink.Deliver(protocol.ErrorFrame("Only the room creator can delete this room"))
		return
	case err != nil:
		d.log.Error("Room deletion failed", "room", act.Name, "error", err)
		client.sink.Deliver(protocol.ErrorFrame("Failed to delete room"))
		return
	}

	evicted := d.registry.EvictRoom(act.Name)
	notice := protocol.ServerFrame{
		Type:    protocol.TypeRoomDeleted,
		Message: fmt.Sprintf("Room %q has been deleted by the creator", act.Name),
	}
	for _, sink := range sinks {
		if !sink.Deliver(notice) {
			d.log.Warn("Eviction notice dropped, slow consumer", "room", act.Name)
		}
	}

	client.sink.Deliver(protocol.ServerFrame{
		Type:    protocol.TypeRoomDeleteSuccess,
		Message: fmt.Sprintf("Room %q has been deleted", act.Name),
	})
	d.log.Info("Room deleted", "room", act.Name, "requester", client.username, "evicted", len(evicted))
}

func (d *Dispatcher) handleListRooms(client *Client, act domain.ListRoomsAction) {
	rooms, err := d.rooms.ListRooms(act.Search)
	if err != nil {
		d.log.Error("Room listing failed", "error", err)
		client.sink.Deliver(protocol.ErrorFrame("Failed to list rooms"))
		return
	}

	entries := lo.Map(rooms, func(room domain.Room, _ int) protocol.RoomEntry {
		return protocol.RoomEntry{
			Name:        room.Name,
			Creator:     room.Creator,
			Description: room.Description,
			IsPrivate:   room.Private(),
			UserCount:   len(d.registry.MembersOf(room.Name)),
			CreatedAt:   room.CreatedAt.Format(historyTimeLayout),
		}
	})
	// Busiest rooms first, then alphabetical.
	sortRoomEntries(entries)

	client.sink.Deliver(protocol.ServerFrame{Type: protocol.TypeRoomList, Rooms: entries})
}

func (d *Dispatcher) handleMyRooms(client *Client) {
	rooms, err := d.rooms.RoomsByCreator(client.username)
	if err != nil {
		d.log.Error("Room listing failed", "creator", client.username, "error", err)
		client.sink.Deliver(protocol.ErrorFrame("Failed to list rooms"))
		return
	}

	client.sink.Deliver(protocol.ServerFrame{
		Type: protocol.TypeMyRooms,
		Rooms: lo.Map(rooms, func(room domain.Room, _ int) protocol.RoomEntry {
			return protocol.RoomEntry{
				Name:        room.Name,
				Description: room.Description,
				IsPrivate:   room.Private(),
				UserCount:   len(d.registry.MembersOf(room.Name)),
				CreatedAt:   room.CreatedAt.Format(historyTimeLayout),
			}
		}),
	})
}

// ============== Messaging ==============

func (d *Dispatcher) handleSendMessage(client *Client, act domain.SendMessageAction) {
	room, ok := d.registry.RoomOf(client.username)
	if !ok {
		client.sink.Deliver(protocol.ErrorFrame("You must join a room to send messages"))
		return
	}
	if act.Content == "" {
		return
	}
	// The limit is in characters, not bytes.
	if utf8.RuneCountInString(act.Content) > d.limits.MaxMessageLength {
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf(
			"Message exceeds the maximum length of %d characters", d.limits.MaxMessageLength)))
		return
	}

	content := d.moderator.Mask(act.Content)

	lock := d.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	persisted, err := d.messages.AppendMessage(domain.Message{
		Room:    room,
		Sender:  client.username,
		Content: content,
		Kind:    domain.KindChat,
	})
	if err != nil {
		// No broadcast without a durable record.
		d.log.Error("Message persistence failed", "room", room, "error", err)
		client.sink.Deliver(protocol.ErrorFrame("Failed to send message"))
		return
	}

	d.fanout(room, protocol.ServerFrame{
		Type:      protocol.TypeMessage,
		Username:  client.username,
		Message:   content,
		Room:      room,
		Timestamp: persisted.CreatedAt.Format(noticeTimeLayout),
	})
	d.log.Debug("Message broadcast", "room", room, "sender", client.username)
}

func (d *Dispatcher) handlePrivateMessage(client *Client, act domain.PrivateMessageAction) {
	if act.Target == "" || act.Content == "" {
		client.sink.Deliver(protocol.ErrorFrame("Invalid private message format"))
		return
	}

	target, displayName, ok := d.registry.SinkFor(act.Target)
	if !ok {
		client.sink.Deliver(protocol.ErrorFrame(fmt.Sprintf("User '%s' is not online", act.Target)))
		return
	}

	timestamp := time.Now().Format(noticeTimeLayout)
	target.Deliver(protocol.ServerFrame{
		Type:      protocol.TypePrivate,
		From:      client.username,
		Message:   act.Content,
		Timestamp: timestamp,
	})
	client.sink.Deliver(protocol.ServerFrame{
		Type:      protocol.TypePrivateSent,
		To:        displayName,
		Message:   act.Content,
		Timestamp: timestamp,
	})
}

func (d *Dispatcher) handleListUsers(client *Client, act domain.ListUsersAction) {
	room := act.Room
	if room == "" {
		current, ok := d.registry.RoomOf(client.username)
		if !ok {
			client.sink.Deliver(protocol.ErrorFrame("You are not in any room"))
			return
		}
		room = current
	}
	client.sink.Deliver(protocol.ServerFrame{
		Type:     protocol.TypeRoomUsers,
		RoomName: room,
		Users:    d.registry.MembersOf(room),
	})
}

// ============== Lifecycle ==============

// HandleDisconnect runs the cleanup for a terminating session: leave the
// current room with a notice, then drop the session from the registry.
// Safe to call for never-authenticated sessions, and idempotent: after a
// logout already cleaned up, the username may belong to a newer session,
// so cleanup only proceeds when the registry still holds THIS session's
// write path.
func (d *Dispatcher) HandleDisconnect(client *Client) {
	if !client.Authenticated() {
		return
	}
	sink, _, online := d.registry.SinkFor(client.username)
	if !online || sink != client.sink {
		return
	}
	if room := d.registry.Leave(client.username); room != "" {
		d.broadcastSystem(room, fmt.Sprintf("🔴 %s disconnected", client.username))
	}
	d.registry.Disconnect(client.username)
	d.log.Info("Disconnected", "username", client.username)
}

// ============== Broadcast internals ==============

// broadcastSystem persists a system notice and fans it out to the room
// under the room's broadcast lock. A failed persist suppresses the fanout.
func (d *Dispatcher) broadcastSystem(room, text string) {
	lock := d.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	persisted, err := d.messages.AppendMessage(domain.Message{
		Room:    room,
		Sender:  domain.SystemSender,
		Content: text,
		Kind:    domain.KindSystem,
	})
	if err != nil {
		d.log.Warn("System notice persistence failed", "room", room, "error", err)
		return
	}

	d.fanout(room, protocol.SystemFrame(text, persisted.CreatedAt.Format(noticeTimeLayout)))
}

// fanout delivers one frame to every member of a room. Callers hold the
// room's broadcast lock.
func (d *Dispatcher) fanout(room string, frame protocol.ServerFrame) {
	for _, sink := range d.registry.SinksForRoom(room) {
		if !sink.Deliver(frame) {
			d.log.Warn("Broadcast frame dropped, slow consumer", "room", room)
		}
	}
}

// roomLock returns the broadcast commit lock of a room, keyed
// case-insensitively so "General" and "general" share one.
func (d *Dispatcher) roomLock(room string) *sync.Mutex {
	key := strings.ToLower(room)
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.roomLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.roomLocks[key] = lock
	}
	return lock
}

// sortRoomEntries orders listings busiest first, then by name.
func sortRoomEntries(entries []protocol.RoomEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UserCount != entries[j].UserCount {
			return entries[i].UserCount > entries[j].UserCount
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
