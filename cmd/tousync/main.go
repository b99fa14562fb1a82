package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/raterudder/tousync/pkg/controller"
	"github.com/raterudder/tousync/pkg/ess"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/server"
	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/utility"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	u := utility.Configured()
	e := ess.Configured()
	s := storage.Configured()
	syncer := controller.Configured(u, e, s)

	// init server
	srv := server.Configured(syncer, s)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	if syncer.RunEvery() == 0 {
		if _, err := syncer.Run(ctx); err != nil {
			// os.Exit skips the deferred close
			if err := s.Close(); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
			}
			os.Exit(1)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncer.Every(ctx, syncer.RunEvery())
	}()

	if srv.Enabled() {
		// Run will block until context is canceled or error happens
		if err := srv.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
			cancel()
			wg.Wait()
			os.Exit(1)
		}
	}
	wg.Wait()
	log.Ctx(ctx).InfoContext(ctx, "exited cleanly")
}
