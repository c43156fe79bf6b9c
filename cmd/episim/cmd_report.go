package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

// reportOutput is the --json result of the report command.
type reportOutput struct {
	Run     *store.Run               `json:"run"`
	Name    string                   `json:"name"`
	Reports []report.InfectionReport `json:"reports"`
	Summary *report.Summary          `json:"summary,omitempty"`
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the daily reports of a stored run",
		Long: `Show the daily reports of a stored run as a table.

Without --run the latest run is shown. --list prints the stored runs
instead.

Examples:
  episim report
  episim report --run 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --district north
  episim report --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			district, _ := cmd.Flags().GetString("district")
			list, _ := cmd.Flags().GetBool("list")
			every, _ := cmd.Flags().GetInt("every")

			st, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if list {
				return listRuns(ctx, cmd.OutOrStdout(), st, jsonOut)
			}

			run, err := st.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			reports, err := st.Reports(ctx, store.ReportQuery{RunID: run.ID, Name: district, ToDay: -1})
			if err != nil {
				return err
			}
			if len(reports) == 0 && district != "" {
				districts, _ := st.Districts(ctx, run.ID)
				return fmt.Errorf("run %s has no district %q (districts: %v)", run.ID, district, districts)
			}

			out := reportOutput{Run: run, Name: district, Reports: reports, Summary: report.Summarize(reports)}
			if out.Name == "" {
				out.Name = "total"
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}
			printReport(cmd.OutOrStdout(), out, every)
			return nil
		},
	}

	cmd.Flags().String("db", "", "Run database (default ~/.episim/runs.db)")
	cmd.Flags().String("run", "", "Run ID (default: latest run)")
	cmd.Flags().String("district", "", "District report instead of the total")
	cmd.Flags().Bool("list", false, "List stored runs")
	cmd.Flags().Int("every", 1, "Print every n-th day")

	return cmd
}

// openStore opens path, or the default database when path is empty.
func openStore(path string) (*store.SQLiteStore, error) {
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default database path: %w", err)
		}
		path = p
	}
	return store.Open(path)
}

func listRuns(ctx context.Context, w io.Writer, st *store.SQLiteStore, jsonOut bool) error {
	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	if jsonOut {
		if runs == nil {
			runs = []store.Run{}
		}
		return json.NewEncoder(w).Encode(map[string]any{"runs": runs, "count": len(runs)})
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTARTED\tDAYS\tSEED\tTHREADS\tPOLICY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Name, statusColor(r.Status).Sprint(r.Status), humanize.Time(r.StartedAt),
			r.Iterations, r.Seed, r.Threads, r.Policy)
	}
	return tw.Flush()
}

func statusColor(s store.RunStatus) *color.Color {
	switch s {
	case store.StatusComplete:
		return color.New(color.FgGreen)
	case store.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func printReport(w io.Writer, out reportOutput, every int) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Run %s (%s)\n", out.Run.ID, out.Name)
	if out.Run.Name != "" {
		fmt.Fprintf(w, "  Name:    %s\n", out.Run.Name)
	}
	fmt.Fprintf(w, "  Status:  %s\n", statusColor(out.Run.Status).Sprint(out.Run.Status))
	if out.Run.Error != "" {
		fmt.Fprintf(w, "  Error:   %s\n", color.RedString(out.Run.Error))
	}
	fmt.Fprintf(w, "  Seed:    %d, %d threads, policy %s\n\n", out.Run.Seed, out.Run.Threads, out.Run.Policy)

	if len(out.Reports) == 0 {
		fmt.Fprintln(w, "No reports stored.")
		return
	}
	every = max(every, 1)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DAY\tDATE\tSUSCEPTIBLE\tACTIVE\tCONTAGIOUS\tCRITICAL\tRECOVERED\tQUARANTINED\tCUMULATIVE\t")
	var prevActive int64
	for i, r := range out.Reports {
		last := i == len(out.Reports)-1
		if i%every == 0 || last {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				r.Day, r.Date,
				humanize.Comma(r.NSusceptible),
				trendColor(r.NActive(), prevActive).Sprint(humanize.Comma(r.NActive())),
				humanize.Comma(r.NContagious),
				humanize.Comma(r.NCritical),
				humanize.Comma(r.NRecovered),
				humanize.Comma(r.NQuarantined()),
				humanize.Comma(r.NInfectedCumulative))
		}
		prevActive = r.NActive()
	}
	tw.Flush()

	if s := out.Summary; s != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Peak: %s active on day %d, %s critical at most\n",
			humanize.Comma(s.PeakActive), s.PeakDay, humanize.Comma(s.PeakCritical))
		fmt.Fprintf(w, "Final: %s of %s ever infected (%s), %s recovered\n",
			humanize.Comma(s.FinalCumulative), humanize.Comma(s.FinalPopulation),
			percent(s.FinalCumulative, s.FinalPopulation), humanize.Comma(s.FinalRecovered))
		if s.Finished {
			fmt.Fprintln(w, color.GreenString("Epidemic finished."))
		}
	}
}

// trendColor marks rising active counts red and falling ones green.
func trendColor(cur, prev int64) *color.Color {
	switch {
	case cur > prev:
		return color.New(color.FgRed)
	case cur < prev:
		return color.New(color.FgGreen)
	default:
		return color.New(color.Reset)
	}
}
