package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/episim/internal/config"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/replay"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

// runOutput is the --json result of a run.
type runOutput struct {
	RunID      string                 `json:"run_id,omitempty"`
	Iterations int                    `json:"iterations"`
	Finished   bool                   `json:"finished"`
	Infections int                    `json:"infections"`
	Final      report.InfectionReport `json:"final"`
	Decisions  int                    `json:"decisions,omitempty"`
	Duration   string                 `json:"duration"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation from a configuration file and a movement event file.

The configuration is read from --config, or ./episim.yaml when present.
EPISIM_* environment variables and the flags below override it.

Examples:
  episim run --config berlin.yaml
  episim run --config berlin.yaml --events week.jsonl --threads 8
  episim run --config berlin.yaml --seed 7 --iterations 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfgPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.LoadFrom(cfgPath)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			notifySignals(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			name, _ := cmd.Flags().GetString("name")
			out, err := runSimulation(ctx, cfg, name, cmd.ErrOrStderr())
			if out == nil {
				return err
			}
			if jsonOut {
				if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(out); encErr != nil {
					return errors.Join(err, encErr)
				}
				return err
			}
			printRun(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().String("config", "", "Configuration file (default ./episim.yaml)")
	cmd.Flags().String("events", "", "Movement event file (JSONL)")
	cmd.Flags().String("population", "", "Person attribute file (CSV)")
	cmd.Flags().String("db", "", "Run database (default from config, empty disables storing)")
	cmd.Flags().String("output", "", "Directory for JSONL output")
	cmd.Flags().Int("threads", 0, "Number of replay workers")
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().Int("iterations", 0, "Number of simulated days")
	cmd.Flags().String("name", "", "Name of the stored run")

	return cmd
}

// applyRunFlags copies explicitly set flags into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.EpisimConfig) error {
	flags := cmd.Flags()
	if flags.Changed("events") {
		cfg.Input.Events, _ = flags.GetString("events")
	}
	if flags.Changed("population") {
		cfg.Input.Population, _ = flags.GetString("population")
	}
	if flags.Changed("db") {
		cfg.Store.Path, _ = flags.GetString("db")
	}
	if flags.Changed("output") {
		cfg.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("threads") {
		cfg.Simulation.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("iterations") {
		cfg.Simulation.Iterations, _ = flags.GetInt("iterations")
	}
	if cfg.Input.Events == "" {
		return fmt.Errorf("%w: no event file, set input.events or --events", models.ErrConfig)
	}
	return nil
}

// runSimulation loads the input, runs the simulation and stores it. The
// output is nil when the run could not start.
func runSimulation(ctx context.Context, cfg *config.EpisimConfig, name string, logOut io.Writer) (_ *runOutput, err error) {
	logger := logging.NewLogger(cfg.Logging.Level, logOut)
	started := time.Now()

	schedule, err := replay.LoadSchedule(cfg.Input.Events)
	if err != nil {
		return nil, err
	}
	var attrs map[string]models.Attributes
	if cfg.Input.Population != "" {
		if attrs, err = replay.LoadAttributes(cfg.Input.Population); err != nil {
			return nil, err
		}
	}
	rcfg, err := cfg.ReplayConfig()
	if err != nil {
		return nil, err
	}

	var sinks report.Tee
	var dl *logging.DecisionLogger
	if dir := cfg.Output.Dir; dir != "" {
		jsonl, jerr := report.NewJSONLSink(dir)
		if jerr != nil {
			return nil, jerr
		}
		defer closeInto(&err, jsonl)
		sinks = append(sinks, jsonl)
		dl = logging.NewDecisionLogger(dir, cfg.Logging.Level)
		defer closeInto(&err, dl)
	}

	pol, err := cfg.NewPolicy(dl)
	if err != nil {
		return nil, err
	}

	var st *store.SQLiteStore
	var runID string
	if cfg.Store.Path != "" {
		if st, err = store.Open(cfg.Store.Path); err != nil {
			return nil, err
		}
		defer closeInto(&err, st)
		raw, err := cfg.Marshal()
		if err != nil {
			return nil, err
		}
		runID, err = st.CreateRun(ctx, store.Run{
			Name:       name,
			Seed:       rcfg.Seed,
			Threads:    rcfg.Threads,
			Iterations: rcfg.Iterations,
			StartDate:  cfg.Simulation.StartDate,
			Policy:     string(cfg.Policy.Kind),
			Config:     string(raw),
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, st.Recorder(runID))
		logger = logger.With("run_id", runID)
	}

	runner, err := replay.New(rcfg, schedule, pol,
		replay.WithSink(sinks),
		replay.WithLogger(logger),
		replay.WithAttributes(attrs))
	if err != nil {
		finishRun(st, runID, err, logger)
		return nil, err
	}

	res, err := runner.Run(ctx)
	finishRun(st, runID, err, logger)

	out := &runOutput{RunID: runID, Decisions: dl.Count(), Duration: time.Since(started).Round(time.Millisecond).String()}
	if res != nil {
		out.Iterations = res.Iterations
		out.Finished = res.Finished
		out.Infections = res.Infections
		out.Final = res.Final
	}
	return out, err
}

// closeInto closes c and joins a close failure into *err, so output that
// never reached disk fails the run.
func closeInto(err *error, c io.Closer) {
	if cerr := c.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}

func finishRun(st *store.SQLiteStore, runID string, runErr error, logger *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.FinishRun(context.Background(), runID, runErr); err != nil {
		logger.Warn("failed to finish run", "error", err)
	}
}

func printRun(w io.Writer, out *runOutput) {
	f := out.Final
	if out.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", out.RunID)
	}
	state := "stopped after"
	if out.Finished {
		state = "finished after"
	}
	fmt.Fprintf(w, "Simulation %s %d days (%s)\n", state, out.Iterations, out.Duration)
	fmt.Fprintf(w, "  Population:          %s\n", humanize.Comma(f.NPopulation))
	fmt.Fprintf(w, "  Transmissions:       %s\n", humanize.Comma(int64(out.Infections)))
	fmt.Fprintf(w, "  Ever infected:       %s (%s)\n", humanize.Comma(f.NInfectedCumulative), percent(f.NInfectedCumulative, f.NPopulation))
	fmt.Fprintf(w, "  Ever symptomatic:    %s\n", humanize.Comma(f.NSymptomaticCumulative))
	fmt.Fprintf(w, "  Active on last day:  %s\n", humanize.Comma(f.NActive()))
	fmt.Fprintf(w, "  Recovered:           %s\n", humanize.Comma(f.NRecovered))
	fmt.Fprintf(w, "  Quarantined:         %s\n", humanize.Comma(f.NQuarantined()))
	if out.Decisions > 0 {
		fmt.Fprintf(w, "  Policy decisions:    %d\n", out.Decisions)
	}
}

func percent(n, of int64) string {
	if of == 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(100*float64(n)/float64(of), 1) + "%"
}
