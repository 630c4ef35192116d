// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Account is a registered identity. The username is unique
// case-insensitively and never changes once created.
type Account struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
