package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=5000"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=mystiko-data"`

	AdminPassword     string        `env:"ADMIN_PASSWORD,default=admin123"`
	TokenSecret       string        `env:"AUTH_TOKEN_SECRET,default=change_me_before_production_2026"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	MinRoomNameLength    int `env:"MIN_ROOM_NAME_LENGTH,default=3"`
	MaxRoomNameLength    int `env:"MAX_ROOM_NAME_LENGTH,default=30"`
	MaxRoomsPerUser      int `env:"MAX_ROOMS_PER_USER,default=5"`
	MaxMessageLength     int `env:"MAX_MESSAGE_LENGTH,default=1000"`
	MaxDescriptionLength int `env:"MAX_DESCRIPTION_LENGTH,default=100"`
	HistoryLimit         int `env:"CHAT_HISTORY_LIMIT,default=50"`

	MaxFrameSize         int           `env:"MAX_FRAME_SIZE,default=65536"`
	ReadBufferSize       int           `env:"READ_BUFFER_SIZE,default=4096"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT,default=15m"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=1m"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	// 0 disables the HTTP inspector.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}

// characterRune converts the single-character masking setting to a rune.
func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
