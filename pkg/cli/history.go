package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to inspect",
			Value:       "default",
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show a user's chat history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			store := repository.NewRedisHistory(cfg.newRedis(), int(cfg.historyLimit))
			msgs, err := store.List(ctx, userID)
			if err != nil {
				return err
			}

			for _, msg := range chat.Sanitize(msgs) {
				switch msg.Role {
				case model.RoleTool:
					for _, p := range msg.Contents {
						fmt.Fprintf(c.Root().Writer, "[tool] %s -> %s\n", p.Name, p.RawResult)
					}
				default:
					if text := msg.Text(); text != "" {
						fmt.Fprintf(c.Root().Writer, "[%s] %s\n", msg.Role, text)
					}
					for _, p := range msg.FunctionCalls() {
						fmt.Fprintf(c.Root().Writer, "[%s] calls %s(%s)\n", msg.Role, p.Name, p.Arguments)
					}
				}
			}
			return nil
		},
	}
}

func resetCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to reset",
			Destination: &userID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Clear a user's chat history and memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			client := cfg.newRedis()
			history := repository.NewRedisHistory(client, int(cfg.historyLimit))
			memories := repository.NewRedisMemory(client)

			if err := chat.Reset(ctx, history, memories, userID); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Cleared history and memories for %s\n", userID)
			return nil
		},
	}
}
