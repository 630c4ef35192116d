package domain

// Action is a tagged client intent produced by the command interpreter
// and consumed by the dispatcher. One concrete type per operation.
type Action interface {
	isAction()
}

type LoginAction struct {
	Username string
	Password string
}

type RegisterAction struct {
	Username string
	Password string
}

type CreateRoomAction struct {
	Name        string
	Description string
	Password    *string
}

type JoinRoomAction struct {
	Name     string
	Password *string
}

type LeaveRoomAction struct{}

type DeleteRoomAction struct {
	Name string
}

type ListRoomsAction struct {
	Search string
}

type MyRoomsAction struct{}

type SendMessageAction struct {
	Content string
}

type PrivateMessageAction struct {
	Target  string
	Content string
}

// ListUsersAction with an empty Room targets the sender's current room.
type ListUsersAction struct {
	Room string
}

type LogoutAction struct{}

// NoOpAction covers client-local commands (/help, /clear) a non-conforming
// client forwarded anyway. The server ignores them silently.
type NoOpAction struct{}

// UnknownAction is anything the interpreter could not classify. The
// dispatcher answers with a user-visible error, never a fatal one.
type UnknownAction struct {
	Input string
}

func (LoginAction) isAction()          {}
func (RegisterAction) isAction()       {}
func (CreateRoomAction) isAction()     {}
func (JoinRoomAction) isAction()       {}
func (LeaveRoomAction) isAction()      {}
func (DeleteRoomAction) isAction()     {}
func (ListRoomsAction) isAction()      {}
func (MyRoomsAction) isAction()        {}
func (SendMessageAction) isAction()    {}
func (PrivateMessageAction) isAction() {}
func (ListUsersAction) isAction()      {}
func (LogoutAction) isAction()         {}
func (NoOpAction) isAction()           {}
func (UnknownAction) isAction()        {}
