package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// .env is a local development convenience; absence is fine
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "tripsmith",
		Usage: "Conversational travel planning assistant",
		Commands: []*cli.Command{
			chatCommand(),
			serveCommand(),
			seedCommand(),
			historyCommand(),
			resetCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
