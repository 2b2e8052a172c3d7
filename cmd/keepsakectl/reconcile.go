package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keepsake-app/keepsake/pkg/badgesync"
)

var reconcileCommand = &cli.Command{
	Name:   "reconcile",
	Usage:  "Force one foreground reconciliation run (debounce gate bypassed)",
	Before: prepareApp,
	Action: runReconcile,
}

func runReconcile(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := getLogger(ctx)

	store, err := badgesync.NewBadgeStore(ctx.Context, cfg.Database.Path, cfg.UserID, log)
	if err != nil && !errors.Is(err, badgesync.ErrStoreUnavailable) {
		return err
	}
	defer store.Close()

	backend := badgesync.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Token, log)
	realtime := badgesync.NewRealtimeClient(cfg.Realtime.URL, cfg.Backend.Token, log)
	setter := badgesync.DetectBadgeSetter(cfg.Badge.Command, cfg.Badge.CountFile, log)

	reconciler := badgesync.NewReconciler(store, backend, realtime, setter, badgesync.ReconcilerCallbacks{}, log)
	defer reconciler.Cleanup()

	reconciler.Reconcile(ctx.Context)

	fmt.Printf("badge: %d\n", store.ReadBadge(ctx.Context))
	for id, n := range reconciler.Unread() {
		fmt.Printf("unread %s: %d\n", id, n)
	}
	if sel := reconciler.ActiveSelection(); sel.ConnectionID != "" {
		fmt.Printf("active: %s (%s)\n", sel.ConnectionID, sel.Source)
	}
	return nil
}
