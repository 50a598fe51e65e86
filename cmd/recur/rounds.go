package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recur/internal/config"
	"github.com/fyrsmithlabs/recur/internal/rounds"
)

func newRoundsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rounds <prompt>",
		Short: "Print the number of rounds planned for a prompt",
		Long: `Print the number of refinement rounds recur would run for a prompt
without calling any backend. run.rounds in the configuration overrides the
plan, as it does for a run.

Examples:
  recur rounds "Explain goroutines"
  recur rounds -c recur.yaml "Compare channels and mutexes in depth"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadStatic(*configPath)
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			planner := rounds.NewHeuristic(cfg.Run.WordsPerRound, cfg.Run.MaxRounds)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rounds.Resolve(planner, prompt, cfg.Run.Rounds))
			return err
		},
	}
}
