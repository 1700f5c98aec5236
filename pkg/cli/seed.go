package cli

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

func seedCommand() *cli.Command {
	var (
		cfg      config
		seedFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Seed file with per-user memories (YAML or JSON)",
			Sources:     cli.EnvVars("TRIPSMITH_SEED_FILE"),
			Destination: &seedFile,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Pre-load long-term memories for users",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			llm, err := cfg.newLLM()
			if err != nil {
				return err
			}

			seed, err := chat.LoadSeedFile(seedFile)
			if err != nil {
				return err
			}

			store := repository.NewRedisMemory(cfg.newRedis())
			chat.SeedMemories(ctx, llm, store, seed)
			return nil
		},
	}
}
