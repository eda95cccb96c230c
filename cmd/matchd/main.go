package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/api"
	"github.com/AaronLay10/StageEngine/internal/config"
	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/games"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/mqtt"
	"github.com/AaronLay10/StageEngine/internal/stage"
	"github.com/AaronLay10/StageEngine/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "match.yaml", "path to match.yaml")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	flag.Parse()

	log.Configure(log.Config{Level: *logLevel, Service: "matchd"})
	logger := log.WithComponent("main")

	cfg, err := config.LoadMatchConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load match.yaml")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("matchd failed")
	}
}

func run(ctx context.Context, cfg *config.MatchConfig, logger zerolog.Logger) error {
	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "matchd starting", map[string]interface{}{
		"service":  "matchd",
		"hostname": hostname,
		"pid":      os.Getpid(),
	})
	defer events.Emit("info", "system.shutdown", "matchd stopped", nil)

	factory, ok := games.Lookup(cfg.Game())
	if !ok {
		return fmt.Errorf("unknown game %q (available: %s)", cfg.Game(), strings.Join(games.Names(), ", "))
	}

	matchID := cfg.Match.ID
	if matchID == "" {
		matchID = match.NewID()
	}
	logger = logger.With().Str("match_id", matchID).Logger()

	auth, err := api.LoadAuth()
	if err != nil {
		return fmt.Errorf("failed to load api credentials: %w", err)
	}
	tlsCfg, err := api.LoadTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to load tls config: %w", err)
	}

	opts := api.Options{Auth: auth, TLS: tlsCfg}

	var store *postgres.Client
	if os.Getenv("PGHOST") != "" {
		store, err = postgres.New(hostname)
		if err != nil {
			return err
		}
		defer store.Close()
		events.SetSink(store)
		defer events.SetSink(nil)
		opts.History = store
		logger.Info().Msg("persisting events to postgres")
	}

	srv := api.New(opts)

	client := mqtt.NewClient(cfg.Network.MQTTURL, "matchd-"+matchID)
	client.Start()
	defer client.Disconnect()

	srv.AddCheck("mqtt", false, func() error {
		if !client.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	})
	if store != nil {
		srv.AddCheck("postgres", true, store.Ping)
	}

	apiCtx, cancelAPI := context.WithCancel(context.Background())
	apiErr := make(chan error, 1)
	go func() {
		apiErr <- srv.ListenAndServe(apiCtx, cfg.APIPort())
	}()
	defer func() {
		cancelAPI()
		if err := <-apiErr; err != nil {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	perSec, burst := cfg.PublishRate()
	publisher := mqtt.NewPublisher(client, cfg.TopicPrefix(), perSec, burst)
	topics := mqtt.Topics{Prefix: cfg.TopicPrefix(), MatchID: matchID}

	registry := mqtt.NewSeatRegistry()
	err = awaitSeats(ctx, cfg, client, topics, registry)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown before roster arrived")
		return nil
	}
	if err != nil {
		return err
	}

	seats := registry.Seats()
	m, err := match.New(match.Config{
		ID:            matchID,
		Seats:         seats,
		Messenger:     publisher,
		Deterministic: cfg.Match.Deterministic,
	})
	if err != nil {
		return err
	}

	seed := uint64(time.Now().UnixNano())
	if cfg.Match.Deterministic {
		seed = 1
	}
	root := factory(m, games.Options{
		Rounds:     cfg.Rounds(),
		StageTimer: cfg.StageTimer(),
		Seed:       seed,
	})

	autoResolve, computer, transition := cfg.Delays()
	session := match.NewSession(m, root,
		stage.WithPacer(stage.SleepPacer{
			AutoResolve: autoResolve,
			Computer:    computer,
			Transition:  transition,
		}),
		stage.WithMaxOverRounds(cfg.MaxOverRounds()),
	)
	session.SetComputerRounds(cfg.ComputerRounds())
	defer session.Close()

	done := make(chan match.Result, 1)
	session.OnFinish(func(r match.Result) {
		done <- r
	})

	sub := mqtt.NewRequestSubscriber(client, topics, session, publisher)
	sub.RestrictTo(registry)
	client.OnConnect(func() {
		sub.ClearSubscriptions()
		if err := sub.SubscribeAll(); err != nil {
			logger.Error().Err(err).Msg("failed to resubscribe to player topics")
		}
	})
	if err := sub.SubscribeAll(); err != nil {
		logger.Error().Err(err).Msg("failed to subscribe to player topics")
	}

	if timeout := cfg.IdleTimeout(); timeout > 0 {
		monitor := match.NewIdleMonitor(timeout)
		monitor.Watch(session)
		monitor.Start(idleCheckInterval(timeout))
		defer monitor.Stop()
	}

	srv.SetSession(session)
	session.Start()
	logger.Info().Str("game", cfg.Game()).Int("seats", len(seats)).Int("humans", len(registry.Humans())).Msg("match running")

	select {
	case res := <-done:
		logger.Info().Bool("aborted", res.Aborted).Interface("scores", res.Scores).Msg("match finished")
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	}
	return nil
}

// awaitSeats fills registry with the configured players, or blocks until a
// valid roster for this match arrives on the join topic.
func awaitSeats(ctx context.Context, cfg *config.MatchConfig, transport mqtt.Transport, topics mqtt.Topics, registry *mqtt.SeatRegistry) error {
	if len(cfg.Match.Players) > 0 {
		for _, p := range cfg.Match.Players {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("player %d", p.PlayerID)
			}
			registry.Register(match.Seat{ID: stage.PlayerID(p.PlayerID), Name: name, Computer: p.Computer})
		}
		return nil
	}

	min, max := cfg.SeatLimits()
	arrived := make(chan struct{}, 1)
	handler := mqtt.RosterHandler(topics.MatchID, registry, mqtt.RosterLimits{MinSeats: min, MaxSeats: max},
		func(*mqtt.RosterPayload) {
			select {
			case arrived <- struct{}{}:
			default:
			}
		})
	if err := transport.Subscribe(topics.Join(), handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topics.Join(), err)
	}

	mainLog := log.WithComponent("main")
	mainLog.Info().Str("topic", topics.Join()).Msg("waiting for roster")
	select {
	case <-arrived:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func idleCheckInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
