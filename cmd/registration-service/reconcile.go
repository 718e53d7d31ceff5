package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"ms-registration/internal/counters"
	"ms-registration/internal/reconcile"

	"github.com/spf13/cobra"
)

var reconcileEvents []string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute counters from records and print the result",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().StringSliceVar(&reconcileEvents, "event", nil, "event to reconcile (repeatable, default RECONCILE_EVENTS)")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	events := reconcileEvents
	if len(events) == 0 {
		events = cfg.Reconcile.Events
	}
	if len(events) == 0 {
		return errors.New("at least one --event is required")
	}

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	job := reconcile.NewJob(st, counters.NewLedger(st, log), log)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var failed int
	for _, event := range events {
		res, err := job.Run(ctx, event)
		if err != nil {
			failed++
			log.Error("RECONCILE", fmt.Sprintf("[%s] %v", event, err))
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d reconcile runs failed", failed, len(events))
	}
	return nil
}
