package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"mystiko/auth"
	"mystiko/domain"
	"mystiko/internal"
	"mystiko/moderation"
	"mystiko/repositories"
	"mystiko/runtime"
	"mystiko/runtime/workers"
	"mystiko/server"
	"mystiko/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	maskRune, err := characterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Storage & Services
	accounts := repositories.NewAccountRepository(db)
	rooms := repositories.NewRoomRepository(db, config.MaxRoomsPerUser)
	messages := repositories.NewMessageRepository(db)

	if err := seed(log, accounts, rooms, config.AdminPassword); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	words, err := moderation.LoadWords()
	if err != nil {
		return fmt.Errorf("loading censored words failed: %w", err)
	}
	moderator, err := moderation.NewModerator(words, maskRune)
	if err != nil {
		return fmt.Errorf("building moderator failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))

	tokens := auth.NewTokenIssuer(config.TokenSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(accounts, tokens)

	// 4. Dispatch & Transport
	registry := runtime.NewRegistry()
	limits := domain.Limits{
		MinRoomNameLength: config.MinRoomNameLength,
		MaxRoomNameLength: config.MaxRoomNameLength,
		MaxRoomsPerUser:   config.MaxRoomsPerUser,
		MaxMessageLength:  config.MaxMessageLength,
		MaxDescription:    config.MaxDescriptionLength,
		HistoryLimit:      config.HistoryLimit,
	}
	dispatcher := runtime.NewDispatcher(log, registry, authService, rooms, messages, moderator, limits)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	acceptor := server.NewAcceptor(log, address, dispatcher, server.Options{
		MaxFrameSize:   config.MaxFrameSize,
		ReadBufferSize: config.ReadBufferSize,
		OutboundBuffer: config.ConnectionBufferSize,
		IdleTimeout:    config.IdleTimeout,
		WriteTimeout:   config.WriteTimeout,
	})

	sup := workers.NewSupervisor(log)
	sup.Add(acceptor, workers.NewTelemetryWorker(log, config.MetricInterval))

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			stats := make(map[string]any)
			if count, err := accounts.AccountCount(); err == nil {
				stats["accounts"] = count
			}
			if count, err := rooms.RoomCount(); err == nil {
				stats["rooms"] = count
			}
			return stats
		})
		log.Info("Debug inspector started", "url", fmt.Sprintf("http://127.0.0.1:%d/inspect", config.DebugPort))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(config, accounts, rooms)
	log.Info("Starting server", "address", address)

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	<-done
	log.Info("Program stopped cleanly")
	return nil
}
