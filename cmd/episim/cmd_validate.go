package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/episim/internal/config"
	"github.com/nvandessel/episim/internal/replay"
)

// validation is the --json result of the validate command.
type validation struct {
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Persons int    `json:"persons,omitempty"`
	Streams int    `json:"streams,omitempty"`
	Events  int    `json:"events,omitempty"`
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration and its input files",
		Long: `Validate a configuration and, when it names them, the event and
population files, without running a simulation.

Examples:
  episim validate --config berlin.yaml
  episim validate --config berlin.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfgPath, _ := cmd.Flags().GetString("config")

			v, err := validate(cfgPath)
			if jsonOut {
				if err != nil {
					v.Error = err.Error()
				}
				if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(v); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			if v.Streams > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d event streams, %d events\n", v.Streams, v.Events)
			}
			if v.Persons > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d persons with attributes\n", v.Persons)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Configuration file (default ./episim.yaml)")

	return cmd
}

func validate(cfgPath string) (validation, error) {
	var v validation
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return v, err
	}
	if err := cfg.Validate(); err != nil {
		return v, err
	}
	if cfg.Input.Events != "" {
		schedule, err := replay.LoadSchedule(cfg.Input.Events)
		if err != nil {
			return v, err
		}
		v.Streams = len(schedule.Streams)
		for _, s := range schedule.Streams {
			v.Events += len(s)
		}
	}
	if cfg.Input.Population != "" {
		attrs, err := replay.LoadAttributes(cfg.Input.Population)
		if err != nil {
			return v, err
		}
		v.Persons = len(attrs)
	}
	v.Valid = true
	return v, nil
}
