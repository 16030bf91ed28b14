// Command taskd is the daemon entrypoint: it loads configuration,
// restores (or creates) the task table, starts the handler's tick loop
// alongside the HTTP control-plane and the Unix socket listener, and
// tears everything down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskd-project/taskd/internal/api"
	"github.com/taskd-project/taskd/internal/children"
	"github.com/taskd-project/taskd/internal/config"
	"github.com/taskd-project/taskd/internal/events"
	"github.com/taskd-project/taskd/internal/handler"
	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/socket"
	"github.com/taskd-project/taskd/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting taskd")

	store := state.NewFileStore(cfg.PueueDirectory)
	snapshot, err := store.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load persisted state")
	}
	snapshot.Settings = state.Settings{
		Groups:               cfg.Groups,
		DefaultParallelTasks: cfg.DefaultParallelTasks,
		PauseOnFailure:       cfg.PauseOnFailure,
		Callback:             cfg.Callback,
		PueueDirectory:       cfg.PueueDirectory,
	}
	s := state.Restore(snapshot, store)

	config.OnChange(func(reloaded *config.Config) {
		s.UpdateSettings(state.Settings{
			Groups:               reloaded.Groups,
			DefaultParallelTasks: reloaded.DefaultParallelTasks,
			PauseOnFailure:       reloaded.PauseOnFailure,
			Callback:             reloaded.Callback,
			PueueDirectory:       reloaded.PueueDirectory,
		})
		log.Info().Msg("configuration reloaded")
	})

	var redisPublisher events.Publisher
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pubsub := events.NewRedisPubSub(client)
		redisPublisher = pubsub
		defer pubsub.Close()
	}

	queue := messages.NewQueue(64)
	table := children.NewTable()
	h := handler.New(s, table, queue)

	server := api.NewServer(cfg, s, queue, redisPublisher)
	h.SetPublisher(server.Publisher())

	sock, err := socket.New(cfg.PueueDirectory, s, queue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start control socket")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.Start(ctx)
	go h.Run(ctx)
	go func() {
		if err := sock.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("control socket listener stopped")
		}
	}()

	if cfg.Redis.Enabled {
		pubsub := redisPublisher.(*events.RedisPubSub)
		go pubsub.Heartbeat(ctx, cfg.Redis.HeartbeatInterval, func() (int, map[string]uint) {
			running := 0
			for _, t := range s.All() {
				if t.Status.Alive() {
					running++
				}
			}
			return running, s.Settings().Groups
		})
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP control-plane listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	h.Close()
	server.Stop()
	sock.Close()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("taskd stopped")
}
