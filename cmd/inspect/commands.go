package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/eval"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/replay"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/rpc"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"
	"github.com/spf13/cobra"
)

// #region cities
func runCities(cmd *cobra.Command, args []string) error {
	t, store, err := openTracker()
	if err != nil {
		return err
	}
	defer store.Close()

	var rows []tracker.CityStats
	if len(args) == 1 {
		st, err := t.CityStatistics(args[0])
		if err != nil {
			return err
		}
		rows = []tracker.CityStats{st}
	} else {
		rows, err = t.AllCityStatistics()
		if err != nil {
			return err
		}
	}
	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no cities found")
		return nil
	}

	fmt.Printf("%-16s  %6s  %7s  %6s  %6s  %5s  %-11s  %s\n",
		"City", "Cases", "Approve", "Reject", "Rate", "Mult", "Status", "Weights")
	fmt.Printf("%-16s+-%6s+-%7s+-%6s+-%6s+-%5s+-%-11s+-%s\n",
		"----------------", "------", "-------", "------", "------", "-----", "-----------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-16s  %6d  %7d  %6d  %5.1f%%  %5.2f  %-11s  %s\n",
			r.City, r.TotalCases, r.ApproveCount, r.RejectCount, r.ApprovalRate*100, r.Multiplier, r.Status, formatWeights(r.ActionWeights))
	}
	return nil
}
// #endregion cities

// #region events
func runEvents(cmd *cobra.Command, args []string) error {
	city, _ := cmd.Flags().GetString("city")
	caseID, _ := cmd.Flags().GetString("case")
	if (city == "") == (caseID == "") {
		return fmt.Errorf("exactly one of --city or --case is required")
	}

	t, store, err := openTracker()
	if err != nil {
		return err
	}
	defer store.Close()

	var events []feedback.Event
	if city != "" {
		events, err = t.EventsForCity(city)
	} else {
		events, err = t.EventsForCase(caseID)
	}
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no events found")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-12s  %-7s  %6s  %s\n", "Event", "Case", "City", "Vote", "Action", "Time")
	fmt.Printf("%-36s+-%-20s+-%-12s+-%-7s+-%6s+-%s\n",
		strings.Repeat("-", 36), strings.Repeat("-", 20), strings.Repeat("-", 12), "-------", "------", "--------------------")
	for _, ev := range events {
		action := "-"
		if ev.Action != nil {
			action = fmt.Sprintf("%d", *ev.Action)
		}
		fmt.Printf("%-36s  %-20s  %-12s  %-7s  %6s  %s\n",
			ev.ID, ev.CaseID, ev.City, ev.Polarity, action, ev.Timestamp.Format(time.RFC3339))
	}
	return nil
}
// #endregion events

// #region replay
const fixtureTolerance = 1e-9

func runReplay(cmd *cobra.Command, args []string) error {
	fixture, _ := cmd.Flags().GetString("fixture")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if fixture != "" {
		return replayFixture(fixture, verbose)
	}

	t, store, err := openTracker()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.AllEvents()
	if err != nil {
		return err
	}
	uc := t.UpdateConfig()
	config := replay.ReplayConfig{UpdateConfig: uc, EvalConfig: eval.ConfigFrom(uc)}

	results, rebuilt := replay.Replay(events, config)
	stored, err := store.List()
	if err != nil {
		return err
	}
	rec := replay.Reconcile(stored, rebuilt)

	if jsonOut {
		if err := printJSON(struct {
			Summary        replay.ReplaySummary  `json:"summary"`
			Reconciliation replay.Reconciliation `json:"reconciliation"`
		}{replay.Summarize(results), rec}); err != nil {
			return err
		}
	} else {
		printResults(results, verbose)
		printReconciliation(rec)
	}
	if !rec.Clean() {
		return fmt.Errorf("stored state drifted from the ledger")
	}
	return nil
}

func replayFixture(path string, verbose bool) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	results, rebuilt := replay.Replay(f.Events, f.Config.ToReplayConfig())
	printResults(results, verbose)

	drifts := f.Verify(rebuilt, fixtureTolerance)
	for _, d := range drifts {
		fmt.Printf("DRIFT    %-16s  %-18s  expected=%s  rebuilt=%s\n", d.City, d.Field, d.Stored, d.Rebuilt)
	}
	if len(drifts) > 0 {
		return fmt.Errorf("fixture %s does not match its expected states", path)
	}
	fmt.Printf("Matched: %d\n", len(f.ExpectedStates))
	return nil
}

func printResults(results []replay.ReplayResult, verbose bool) {
	if verbose {
		for _, r := range results {
			fmt.Printf("%-36s  %-12s  %-11s  %s\n", r.EventID, r.City, r.Action, r.Reason)
		}
		fmt.Println()
	}
	s := replay.Summarize(results)
	fmt.Printf("Events: %d  adjusted=%d  count_only=%d  eval_reject=%d  invalid=%d  cities=%d\n",
		s.TotalEvents, s.Adjusted, s.CountOnly, s.EvalRejects, s.Invalid, s.Cities)
}

func printReconciliation(rec replay.Reconciliation) {
	fmt.Printf("Matched: %d\n", len(rec.Matched))
	for _, d := range rec.Drifts {
		fmt.Printf("DRIFT    %-16s  %-18s  stored=%s  rebuilt=%s\n", d.City, d.Field, d.Stored, d.Rebuilt)
	}
	for _, c := range rec.Missing {
		fmt.Printf("MISSING  %s\n", c)
	}
	for _, c := range rec.Orphaned {
		fmt.Printf("ORPHAN   %s\n", c)
	}
}
// #endregion replay

// #region export
func runExport(cmd *cobra.Command, args []string) error {
	city, _ := cmd.Flags().GetString("city")
	out, _ := cmd.Flags().GetString("out")
	desc, _ := cmd.Flags().GetString("description")

	t, store, err := openTracker()
	if err != nil {
		return err
	}
	defer store.Close()

	var events []feedback.Event
	if city != "" {
		events, err = t.EventsForCity(city)
	} else {
		events, err = store.AllEvents()
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events to export")
	}

	f := replay.NewFixture(desc, events, t.UpdateConfig())
	if err := replay.WriteFixture(out, f); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d events, %d cities to %s\n", len(f.Events), len(f.ExpectedStates), out)
	return nil
}
// #endregion export

// #region adjust
func runAdjust(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	base, _ := cmd.Flags().GetFloat64("base")
	city, _ := cmd.Flags().GetString("city")
	hint, _ := cmd.Flags().GetStringSlice("hint")

	client, err := rpc.NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	d, err := client.AdjustConfidence(ctx, base, city, hint)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(d)
	}
	fmt.Printf("%.4f -> %.4f (x%.2f)\n%s\n", d.Base, d.Adjusted, d.Multiplier, d.Explanation)
	return nil
}
// #endregion adjust

// #region output
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatWeights(ws []float64) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%.3f", w)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
// #endregion output
