package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/caseflowhq/caseflow/pkg/cmd"
	"github.com/caseflowhq/caseflow/pkg/log"
)

const defaultWebhookPort = 9092

func main() {
	command := &cli.Command{
		Name:                  "caseflow-trigger",
		EnableShellCompletion: true,
		Usage:                 "Watch workflow trigger sources and request executions when they fire",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "manager-id",
				Aliases: []string{"id"},
				Usage:   "Custom trigger manager ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("MANAGER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "webhook-port",
				Usage:   "Port for the shared webhook HTTP server",
				Value:   defaultWebhookPort,
				Sources: cli.EnvVars("WEBHOOK_PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			managerID := command.String("manager-id")
			if managerID == "" {
				managerID = "trigger-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("caseflow-trigger").With("manager_id", managerID)

			logger.InfoContext(ctx, "Initializing Caseflow Trigger Service")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "caseflow-trigger", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			manager := NewTriggerManager(
				managerID,
				persistence,
				eventBus,
				command.Int("webhook-port"),
				logger,
			)

			err := manager.Start()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start trigger service", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
