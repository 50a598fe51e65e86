package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recur/internal/config"
)

// runFlags holds the root command flags. A flag overrides configuration only
// when the user set it.
type runFlags struct {
	configPath  string
	prompt      string
	rubricFile  string
	rounds      int
	alts        int
	temperature float64
	logfile     string
	logLevel    string
	outputFile  string
	auditJSON   string
	echo        bool
	contextFile []string
	provider    string
	model       string
	grader      string
	natsURL     string
	metricsFile string
	redact      bool
	quiet       bool
}

func newRootCmd() *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "recur",
		Short: "Answer a prompt by recursive refinement",
		Long: `recur generates a baseline answer, then refines it over several rounds.
Each round generates alternatives to the current best answer concurrently,
grades them, and keeps the best. The highest-scoring answer is printed to
stdout; progress and a summary go to stderr.

Configuration precedence: flags > RECUR_* environment > YAML file > defaults.

Examples:
  # Offline dry run with the echo backend
  recur --echo -p "Say hi" -n 1 -a 2

  # Use a config file and write the audit trail
  recur -c recur.yaml -j audit.json -o answer.txt

  # Include context documents
  recur -p "Summarize the design" -f DESIGN.md -f README.md`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecur(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")

	fl := cmd.Flags()
	fl.StringVarP(&f.prompt, "prompt", "p", "", "prompt to answer")
	fl.StringVarP(&f.rubricFile, "rubric-file", "b", "", "file holding the grading rubric")
	fl.IntVarP(&f.rounds, "rounds", "n", 0, "number of refinement rounds (default: planned from the prompt)")
	fl.IntVarP(&f.alts, "alts", "a", 3, "alternatives generated per round")
	fl.Float64VarP(&f.temperature, "temperature", "t", 0.4, "sampling temperature for generation")
	fl.StringVarP(&f.logfile, "logfile", "l", "", "write JSON logs to this file instead of stderr")
	fl.StringVarP(&f.logLevel, "log-level", "L", "info", "log level (DEBUG, INFO, WARNING, ERROR)")
	fl.StringVarP(&f.outputFile, "output-file", "o", "", "write the final answer to this file")
	fl.StringVarP(&f.auditJSON, "audit-json", "j", "", "write every graded answer to this JSON file")
	fl.BoolVar(&f.echo, "echo", false, "use the offline echo backend")
	fl.StringArrayVarP(&f.contextFile, "context-file", "f", nil, "context document to consider (repeatable)")
	fl.StringVar(&f.provider, "provider", "", "backend provider (googleai, openai, anthropic, ollama, echo)")
	fl.StringVar(&f.model, "model", "", "backend model (default depends on the provider)")
	fl.StringVar(&f.grader, "grader", "", "grading strategy (heuristic, backend)")
	fl.StringVar(&f.natsURL, "nats-url", "", "publish progress events to this NATS server")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fl.BoolVar(&f.redact, "redact", false, "redact secrets from written files")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the summary")

	cmd.AddCommand(newRoundsCmd(&f.configPath))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// overrides maps the flags the user set onto configuration.
func (f *runFlags) overrides(cmd *cobra.Command) []config.Override {
	changed := cmd.Flags().Changed
	var out []config.Override

	if changed("prompt") {
		out = append(out, func(c *config.Config) { c.Run.Prompt = f.prompt })
	}
	if changed("rubric-file") {
		out = append(out, func(c *config.Config) { c.Grader.RubricFile = f.rubricFile })
	}
	if changed("rounds") {
		n := f.rounds
		out = append(out, func(c *config.Config) { c.Run.Rounds = &n })
	}
	if changed("alts") {
		out = append(out, func(c *config.Config) { c.Run.Alts = f.alts })
	}
	if changed("temperature") {
		out = append(out, func(c *config.Config) { c.Run.Temperature = f.temperature })
	}
	if changed("logfile") {
		out = append(out, func(c *config.Config) { c.Logging.File = f.logfile })
	}
	if changed("log-level") {
		out = append(out, func(c *config.Config) { c.Logging.Level = f.logLevel })
	}
	if changed("output-file") {
		out = append(out, func(c *config.Config) { c.Export.OutputFile = f.outputFile })
	}
	if changed("audit-json") {
		out = append(out, func(c *config.Config) { c.Export.AuditJSON = f.auditJSON })
	}
	if changed("context-file") {
		out = append(out, func(c *config.Config) { c.Context.Files = append([]string(nil), f.contextFile...) })
	}
	if changed("provider") {
		out = append(out, func(c *config.Config) {
			if c.Backend.Provider != f.provider {
				c.Backend.Model = ""
			}
			c.Backend.Provider = f.provider
		})
	}
	if changed("model") {
		out = append(out, func(c *config.Config) { c.Backend.Model = f.model })
	}
	if f.echo {
		out = append(out, func(c *config.Config) {
			c.Backend.Provider = config.ProviderEcho
			c.Backend.Model = ""
		})
	}
	if changed("grader") {
		out = append(out, func(c *config.Config) { c.Grader.Strategy = f.grader })
	}
	if changed("nats-url") {
		out = append(out, func(c *config.Config) { c.Events.NATSURL = f.natsURL })
	}
	if changed("metrics-file") {
		out = append(out, func(c *config.Config) { c.Metrics.Textfile = f.metricsFile })
	}
	if changed("redact") {
		out = append(out, func(c *config.Config) { c.Export.Redact = f.redact })
	}
	return out
}
