package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keepsake-app/keepsake/pkg/badgesync"
)

var pushdCommand = &cli.Command{
	Name:   "pushd",
	Usage:  "Run the background push-handling daemon",
	Before: prepareApp,
	Action: runPushDaemon,
}

var pushCommand = &cli.Command{
	Name:   "push",
	Usage:  "Push payload utilities",
	Before: prepareApp,
	Subcommands: []*cli.Command{
		{
			Name:      "simulate",
			Usage:     "Feed a JSON push payload (from file or stdin) through the handler",
			ArgsUsage: "[payload-file]",
			Action:    simulatePush,
		},
	},
}

func buildPushHandler(ctx *cli.Context) (*badgesync.PushHandler, func(), error) {
	cfg := getConfig(ctx)
	log := getLogger(ctx)
	// A degraded store is fine for the daemon: pushes still notify, the
	// badge just won't survive restarts.
	store, err := badgesync.NewBadgeStore(ctx.Context, cfg.Database.Path, cfg.UserID, log)
	if err != nil && !errors.Is(err, badgesync.ErrStoreUnavailable) {
		return nil, nil, err
	}
	setter := badgesync.DetectBadgeSetter(cfg.Badge.Command, cfg.Badge.CountFile, log)
	notifier := badgesync.NewDesktopNotifier(log)
	router := badgesync.NewAppRouter(cfg.App.SocketPath, cfg.App.Command, log)
	handler := badgesync.NewPushHandler(store, setter, notifier, router, log)
	return handler, store.Close, nil
}

func runPushDaemon(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := getLogger(ctx).With().Str("component", "pushd").Logger()

	handler, closeStore, err := buildPushHandler(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realtime := badgesync.NewRealtimeClient(cfg.Realtime.URL, cfg.Backend.Token, log)

	// Redial with capped exponential backoff; the gateway dropping us is
	// routine (suspend, network change), not an exit condition.
	backoff := time.Second
	for {
		err = realtime.Listen(runCtx, func(pushCtx context.Context, body []byte) {
			handler.HandlePush(pushCtx, body)
			backoff = time.Second
		})
		if runCtx.Err() != nil {
			log.Info().Msg("Push daemon shutting down")
			return nil
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("Push channel lost, redialing")
		select {
		case <-runCtx.Done():
			log.Info().Msg("Push daemon shutting down")
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func simulatePush(ctx *cli.Context) error {
	var body []byte
	var err error
	if path := ctx.Args().First(); path != "" {
		body, err = os.ReadFile(path)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	handler, closeStore, err := buildPushHandler(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	notif := handler.HandlePush(ctx.Context, body)
	fmt.Printf("type=%s badge=%d title=%q\n", notif.Type, notif.BadgeCount, notif.Title)
	return nil
}
