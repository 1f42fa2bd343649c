package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/freakyfriday/relayer/internal/chain"
	"github.com/freakyfriday/relayer/internal/config"
	"github.com/freakyfriday/relayer/internal/events"
	"github.com/freakyfriday/relayer/internal/mode"
	"github.com/freakyfriday/relayer/internal/poller"
	"github.com/freakyfriday/relayer/internal/round"
	"github.com/freakyfriday/relayer/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	zone, err := cfg.Zone()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up chain client")
	}
	defer client.Close()

	hub := server.NewHub()
	var pub events.Publisher = hub
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, "round")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsPub.Close()
		pub = events.Multi(hub, natsPub)
	}

	preflight := round.NewPreflight(client, client, client.RelayerAddress(), cfg.RelayRefund)
	coord := round.NewCoordinator(client, client, preflight, mode.NewPolicy(zone), pub, client.RelayerAddress(), cfg.RelayRefund)

	p := poller.New(coord, client, pub, poller.Config{
		CloseInterval:    cfg.PollInterval,
		ModeSyncInterval: cfg.ModeSyncInterval,
		ArmAfterClose:    cfg.ArmAfterClose,
	})
	if err := p.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start poller")
	}
	defer func() {
		if err := p.Stop(); err != nil {
			log.Error().Err(err).Msg("poller stop failed")
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h2c.NewHandler(server.New(coord, client, hub).Handler(cfg.FrontendOrigin), &http2.Server{}),
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Msg("relayer listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
