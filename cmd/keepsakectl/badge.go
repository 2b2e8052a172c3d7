package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keepsake-app/keepsake/pkg/badgesync"
)

var badgeCommand = &cli.Command{
	Name:   "badge",
	Usage:  "Inspect or clear the persisted unread badge",
	Before: prepareApp,
	Subcommands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "Print the persisted badge count",
			Action: badgeShow,
		},
		{
			Name:   "clear",
			Usage:  "Clear the persisted badge and the OS badge",
			Action: badgeClear,
		},
	},
}

func badgeShow(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	store, err := badgesync.NewBadgeStore(ctx.Context, cfg.Database.Path, cfg.UserID, getLogger(ctx))
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Println(store.ReadBadge(ctx.Context))
	if last := store.ReadLastActive(ctx.Context); last != "" {
		fmt.Printf("last active connection: %s\n", last)
	}
	return nil
}

func badgeClear(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := getLogger(ctx)
	store, err := badgesync.NewBadgeStore(ctx.Context, cfg.Database.Path, cfg.UserID, log)
	if err != nil {
		return err
	}
	defer store.Close()
	store.ClearBadge(ctx.Context)
	setter := badgesync.DetectBadgeSetter(cfg.Badge.Command, cfg.Badge.CountFile, log)
	if err = setter.ClearBadge(ctx.Context); err != nil {
		log.Debug().Err(err).Msg("OS badge not cleared")
	}
	fmt.Println("badge cleared")
	return nil
}
