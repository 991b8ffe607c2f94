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
	"syscall"

	"github.com/mlearn/apiserver/config"
	"github.com/mlearn/apiserver/internal/logging"
	"github.com/mlearn/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail enrollment events from the message queue",
	Long: `Subscribes to the configured events channel and logs every
enrollment and course event as it arrives. Usage:

	MQ_BACKEND=rabbitmq mlearn events
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		backend, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("init message queue failed: %w", err)
		}
		if backend == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() {
			_ = backend.Close()
		}()

		logger.Info("listening for events", "channel", cfg.EventsChannel, "backend", cfg.MQ.Backend)
		err = backend.Subscribe(ctx, cfg.EventsChannel, func(ctx context.Context, msg mq.Message) error {
			event, err := mq.DecodeEvent(msg)
			if err != nil {
				// Undecodable payloads are acked and skipped.
				logger.Warn("skipping message", "id", msg.ID, "error", err)
				return nil
			}
			logger.Info("event",
				"type", event.Type,
				"course_id", event.CourseID,
				"student_id", event.StudentID,
				"professor_id", event.ProfessorID,
				"removed", event.Removed,
				"occurred_at", event.OccurredAt,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
