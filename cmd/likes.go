/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/pulsegram/apiserver/config"
	"github.com/pulsegram/apiserver/internal/db"
	"github.com/pulsegram/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// likesCmd groups maintenance of the stored like counters.
var likesCmd = &cobra.Command{
	Use:   "likes",
	Short: "Check like counters against recorded likes",
}

var likesVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report posts whose like counter differs from their likes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		drifts, err := store.NewPostRepository(conn).VerifyLikes(cmd.Context())
		if err != nil {
			return err
		}
		for _, d := range drifts {
			logger.Warn(cmd.Context(), "like counter drift", "post_id", d.PostID, "stored", d.Stored, "actual", d.Actual)
		}
		if len(drifts) > 0 {
			return fmt.Errorf("%d posts have drifting like counters", len(drifts))
		}
		logger.Info(cmd.Context(), "like counters consistent")
		return nil
	},
}

var likesReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rewrite drifting like counters from the recorded likes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		fixed, err := store.NewPostRepository(conn).ReconcileLikes(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info(cmd.Context(), "like counters reconciled", "posts", fixed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(likesCmd)
	likesCmd.AddCommand(likesVerifyCmd)
	likesCmd.AddCommand(likesReconcileCmd)
}
