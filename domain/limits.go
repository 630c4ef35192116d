package domain

// Limits carries every configurable bound the core enforces. Values are
// injected from the environment at startup, never hardcoded downstream.
type Limits struct {
	MinRoomNameLength int
	MaxRoomNameLength int
	MaxRoomsPerUser   int
	MaxMessageLength  int
	HistoryLimit      int
	MaxDescription    int
}
