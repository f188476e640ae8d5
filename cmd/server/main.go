package main

import (
	"chat-presence/api"
	"chat-presence/domain"
	"chat-presence/internal"
	"chat-presence/moderation"
	"chat-presence/repositories"
	"chat-presence/runtime/workers"
	"chat-presence/search"
	"chat-presence/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugServer := internal.StartDebugServer(db, config.DebugPort, logger)
		defer func() { _ = debugServer.Close() }()
	}

	clock := domain.SystemClock{}
	participantRepository := repositories.NewParticipantRepository(db, clock, logger)
	messageRepository, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("message repository failed: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()

	// 3. Search index (Bluge)
	blugeWriter, err := bluge.OpenWriter(buildBlugeConfig(config))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()
	index := search.NewMessageIndex(blugeWriter, logger)
	if config.BlugeFilepath == "" {
		messages, err := messageRepository.List()
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to load messages: %w", err)
		}
		if _, err := index.Rebuild(messages); err != nil {
			return exitRuntime, err
		}
	}

	moderator, err := moderation.NewModerator(internal.WordList(config.CensoredWords), charReplacement)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator build failed: %w", err)
	}

	// 4. Presence sweeper under supervision
	sweeper, err := workers.NewPresenceSweeper(logger, participantRepository, messageRepository, clock,
		config.SweepPeriod, config.ExpiryThreshold)
	if err != nil {
		return exitConfig, err
	}
	sup := workers.NewSupervisor(logger, config.RestartInterval)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	supervisorDone := make(chan struct{})
	go func() {
		sup.Add(sweeper).Run(ctx)
		close(supervisorDone)
	}()

	// 6. HTTP Server
	chatService := services.NewChatService(logger, participantRepository, messageRepository, index, moderator, clock)
	handler := api.NewHandler(chatService, logger, config.MaxBodyBytes)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           api.Routes(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
		cancel()
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if config.BadgerInMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

// buildBlugeConfig keeps the index in memory unless a path is configured.
// An in-memory index is rebuilt from the message store at startup.
func buildBlugeConfig(config internal.Config) bluge.Config {
	if config.BlugeFilepath == "" {
		return bluge.InMemoryOnlyConfig()
	}
	return bluge.DefaultConfig(config.BlugeFilepath)
}
