/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/logging"
	"github.com/darigo/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// eventsCmd groups message broker tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel...]",
	Short: "Print events published by the API",
	Long: `Subscribes to the given channels, or to every channel when none is given,
and logs each event until interrupted. Requires MQ_BACKEND.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		channels := args
		if len(channels) == 0 {
			channels = mq.Channels
		}
		for _, ch := range channels {
			if !slices.Contains(mq.Channels, ch) {
				return fmt.Errorf("unknown channel %q", ch)
			}
		}

		cfg := config.LoadConfig()
		logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(backgroundContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg.MQ, logger.Named("mq"))
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer bus.Close()

		g, gctx := errgroup.WithContext(ctx)
		for _, ch := range channels {
			g.Go(func() error {
				return bus.Subscribe(gctx, ch, func(_ context.Context, msg mq.Message) error {
					logger.Info("event",
						zap.String("channel", msg.Channel),
						zap.String("id", msg.ID),
						zap.Time("occurredAt", msg.OccurredAt()),
						zap.ByteString("data", msg.Data),
					)
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
