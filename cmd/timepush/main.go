// Command timepush sends Web Push reminders to employees who have logged too
// few hours on a workday.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "timepush",
		Usage: "Web Push reminders for unregistered working hours",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server and, when enabled, the reminder scheduler",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServe(ctx)
				},
			},
			{
				Name:  "run-reminders",
				Usage: "Run one reminder sweep and print the report as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "date",
						Aliases: []string{"d"},
						Usage:   "Process this UTC date (YYYY-MM-DD) instead of today",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runReminders(ctx, os.Stdout, cmd.String("date"))
				},
			},
			{
				Name:  "test-send",
				Usage: "Send a test notification to every subscription of a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Required: true,
						Usage:    "User ID",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTestSend(ctx, os.Stdout, cmd.String("user"))
				},
			},
			{
				Name:  "generate-vapid-keys",
				Usage: "Print a fresh VAPID key pair in .env format",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runGenerateVAPIDKeys(os.Stdout)
				},
			},
			{
				Name:  "users",
				Usage: "Manage the users who receive reminders",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Create an active user and print its ID",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "name",
								Aliases:  []string{"n"},
								Required: true,
								Usage:    "Display name used in notifications",
							},
							&cli.StringFlag{
								Name:    "email",
								Aliases: []string{"e"},
								Usage:   "Contact email",
							},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return runUserAdd(os.Stdout, cmd.String("name"), cmd.String("email"))
						},
					},
					{
						Name:  "deactivate",
						Usage: "Stop reminding a user without deleting them",
						Flags: []cli.Flag{userIDFlag()},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return runUserSetActive(os.Stdout, cmd.String("id"), false)
						},
					},
					{
						Name:  "activate",
						Usage: "Resume reminders for a user",
						Flags: []cli.Flag{userIDFlag()},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return runUserSetActive(os.Stdout, cmd.String("id"), true)
						},
					},
					{
						Name:  "delete",
						Usage: "Delete a user with their subscription and logged hours",
						Flags: []cli.Flag{userIDFlag()},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return runUserDelete(os.Stdout, cmd.String("id"))
						},
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and print the schema version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrate(os.Stdout)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func userIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "User ID",
	}
}
