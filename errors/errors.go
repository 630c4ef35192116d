package errors

import "fmt"

// Protocol errors are fatal for the offending connection only.
var (
	ErrOversizedFrame = fmt.Errorf("frame exceeds maximum size")
	ErrMalformedFrame = fmt.Errorf("frame is not valid JSON")
)

// Validation errors. Reported to the caller, the connection survives.
var (
	ErrInvalidUsername = fmt.Errorf("username must be 3-20 alphanumeric characters")
	ErrInvalidPassword = fmt.Errorf("password must be at least 4 characters")
	ErrInvalidRoomName = fmt.Errorf("invalid room name")
)

// Auth errors.
var (
	ErrUserAlreadyExists  = fmt.Errorf("username already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrAlreadyLoggedIn    = fmt.Errorf("already logged in from another session")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Room errors.
var (
	ErrRoomAlreadyExists = fmt.Errorf("room already exists")
	ErrRoomNotFound      = fmt.Errorf("room not found")
	ErrRoomLimitReached  = fmt.Errorf("room limit reached")
	ErrNotRoomOwner      = fmt.Errorf("only the room creator can do this")
)

// Runtime errors.
var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
)
