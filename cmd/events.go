/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/pulsegram/apiserver/config"
	"github.com/pulsegram/apiserver/internal/mq"
	"github.com/pulsegram/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd groups commands that work with the activity channel.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect post activity events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log post activity events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is none; nothing to tail")
		}
		defer broker.Close()

		logger.Info(ctx, "tailing post events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = mq.NewPostEvents(broker, cfg.MQ.Channel, logger).Tail(ctx, func(ctx context.Context, event types.PostEvent) error {
			logger.Info(ctx, "post event",
				"id", event.ID,
				"type", string(event.Type),
				"post_id", event.PostID,
				"actor_id", event.ActorID,
				"occurred_at", event.OccurredAt,
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
