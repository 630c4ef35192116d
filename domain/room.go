package domain

import "time"

// Room is the durable record of a chat room. The live member set is not
// part of it; presence lives only in the runtime registry.
type Room struct {
	Name         string
	Creator      string
	Description  string
	PasswordHash string // empty for public rooms
	CreatedAt    time.Time
}

// Private reports whether joining requires a password.
func (r Room) Private() bool {
	return r.PasswordHash != ""
}
