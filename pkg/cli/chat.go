package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID for history and memory",
			Value:       "default",
			Sources:     cli.EnvVars("TRIPSMITH_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive travel planning session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			registry, err := cfg.newContextRegistry()
			if err != nil {
				return err
			}

			uc, err := registry.Get(ctx, userID)
			if err != nil {
				return err
			}

			rl, err := readline.New("you> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Travel planning session for %s. Type 'exit' to quit.\n", userID)

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "" {
					continue
				}
				if message == "exit" || message == "quit" {
					break
				}

				if err := runTurn(ctx, c, uc, userID, message); err != nil {
					fmt.Fprintf(c.Root().Writer, "\n%s\n", chat.ErrorReply(err))
				}
			}

			fmt.Fprintf(c.Root().Writer, "\nSafe travels!\n")
			return nil
		},
	}
}

func runTurn(ctx context.Context, c *cli.Command, uc *chat.UserContext, userID, message string) error {
	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = " planning..."
	spin.Start()
	spinning := true
	stopSpinner := func() {
		if spinning {
			spin.Stop()
			spinning = false
		}
	}
	defer stopSpinner()

	printed := 0
	updates, errCh := uc.Orchestrator.StreamTurn(ctx, userID, message)
	for u := range updates {
		stopSpinner()

		if u.Event != nil {
			printEvent(c, *u.Event, printed > 0)
			continue
		}

		if len(u.Reply) < printed {
			// Fallback replaced the in-progress reply
			fmt.Fprintf(c.Root().Writer, "\n%s", u.Reply)
		} else {
			fmt.Fprint(c.Root().Writer, u.Reply[printed:])
		}
		printed = len(u.Reply)
	}

	if printed > 0 {
		fmt.Fprintln(c.Root().Writer)
	}
	return <-errCh
}

func printEvent(c *cli.Command, ev model.UIEvent, midText bool) {
	switch ev.Type {
	case model.EventUserMessage, model.EventLLMResponseStart, model.EventTokenStreamStart:
		return
	}

	if midText {
		fmt.Fprintln(c.Root().Writer)
	}
	if ev.Message != "" {
		fmt.Fprintf(c.Root().Writer, "%s %s: %s\n", ev.Icon, ev.Title, ev.Message)
	} else {
		fmt.Fprintf(c.Root().Writer, "%s %s\n", ev.Icon, ev.Title)
	}
}
