package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simline/simline/sim/trace"
)

var (
	inspectDBPath string // Trace database to read
	inspectRunID  string // Restrict to one run
)

// inspectCmd summarizes a trace database written by --trace-db
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize runs recorded in a SQLite event trace",
	Run: func(cmd *cobra.Command, args []string) {
		reader, err := trace.OpenSQLiteReader(inspectDBPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer reader.Close()

		if err := printTraceSummaries(os.Stdout, reader, inspectRunID); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// printTraceSummaries writes one summary per finished run in the trace,
// or only for runID when given.
func printTraceSummaries(w io.Writer, reader *trace.SQLiteReader, runID string) error {
	runs, err := reader.ListRuns()
	if err != nil {
		return err
	}
	for _, run := range runs {
		if runID != "" && run.RunID != runID {
			continue
		}
		events, err := reader.ListEvents(run.RunID)
		if err != nil {
			return err
		}
		s := trace.Summarize(events)

		outcome := "completed"
		if run.StoppedEarly {
			outcome = "stopped early"
		}
		fmt.Fprintf(w, "=== Run %s (%s at t=%.2f) ===\n", run.RunID, outcome, run.EndTime)
		fmt.Fprintf(w, "Events          : %d\n", s.TotalEvents)
		fmt.Fprintf(w, "Parts seen      : %d\n", s.UniqueParts)
		fmt.Fprintf(w, "Parts finished  : %d\n", s.PartsFinished)
		fmt.Fprintf(w, "Mean cycle time : %.2f\n", s.MeanCycleTime)
		fmt.Fprintf(w, "Max cycle time  : %.2f\n", s.MaxCycleTime)
		if s.UnknownEvents > 0 {
			fmt.Fprintf(w, "Unknown events  : %d\n", s.UnknownEvents)
		}

		ids := make([]int, 0, len(s.WorkstationDistribution))
		for id := range s.WorkstationDistribution {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "Workstation %-2d  : %d parts\n", id, s.WorkstationDistribution[id])
		}
	}
	return nil
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDBPath, "db", "", "Path to a trace database written with --trace-db")
	inspectCmd.Flags().StringVar(&inspectRunID, "run", "", "Only summarize this run ID")
	_ = inspectCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(inspectCmd)
}
