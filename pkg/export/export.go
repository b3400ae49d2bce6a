// Package export renders sweep results and models for people and other
// tools.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kilianp07/fleetplan/core/sweep"
)

// TableHeader is the header line of WriteTable.
const TableHeader = "| Final SOC | Total Cost | Delay (h) | Off-hours (h) | Penalties | Penalty Share |"

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func hours(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func percent(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" }

// failure describes a failed row, with the incumbent objective when a
// timed-out solve found one.
func failure(r sweep.Row) string {
	if r.IncumbentObjective != nil {
		return fmt.Sprintf("FAILED (%s, incumbent %s)", r.Reason, money(*r.IncumbentObjective))
	}
	return fmt.Sprintf("FAILED (%s)", r.Reason)
}

// WriteTable writes rows as a markdown table, one line per target.
func WriteTable(w io.Writer, rows []sweep.Row) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, TableHeader)
	fmt.Fprintln(bw, "|---|---|---|---|---|---|")
	for _, r := range rows {
		soc := strconv.FormatFloat(math.Round(r.Target*1e4)/100, 'f', -1, 64) + "%"
		if r.Failed || r.Summary == nil {
			fmt.Fprintf(bw, "| %s | %s | - | - | - | - |\n", soc, failure(r))
			continue
		}
		s := r.Summary
		total := money(s.TotalCost)
		if !s.Optimal {
			total += " *"
		}
		fmt.Fprintf(bw, "| %s | %s | %s | %s | %s | %s |\n",
			soc, total, hours(s.DelayHours), hours(s.OffHoursHours), money(s.PenaltyCost), percent(s.PenaltyShare))
	}
	return bw.Flush()
}

var csvHeader = []string{
	"target", "status", "failed", "reason", "total_cost", "energy_cost", "delay_cost",
	"off_hours_cost", "delay_hours", "off_hours_hours", "penalty_cost", "penalty_share",
	"incumbent_objective", "wall_time_ms",
}

// WriteCSV writes rows in CSV format. Cost columns are empty for failed rows.
func WriteCSV(w io.Writer, rows []sweep.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range rows {
		rec := make([]string, len(csvHeader))
		rec[0] = f(r.Target)
		rec[1] = r.Status.String()
		rec[2] = strconv.FormatBool(r.Failed)
		rec[3] = string(r.Reason)
		if s := r.Summary; s != nil && !r.Failed {
			rec[4], rec[5], rec[6], rec[7] = f(s.TotalCost), f(s.EnergyCost), f(s.DelayCost), f(s.OffHoursCost)
			rec[8], rec[9], rec[10], rec[11] = f(s.DelayHours), f(s.OffHoursHours), f(s.PenaltyCost), f(s.PenaltyShare)
		}
		if r.IncumbentObjective != nil {
			rec[12] = f(*r.IncumbentObjective)
		}
		rec[13] = strconv.FormatInt(r.WallTime.Milliseconds(), 10)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows to w in JSON format.
func WriteJSON(w io.Writer, rows []sweep.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []sweep.Row{}
	}
	return enc.Encode(rows)
}

// Write renders rows in the named format: table, csv or json.
func Write(w io.Writer, format string, rows []sweep.Row) error {
	switch format {
	case "", "table":
		return WriteTable(w, rows)
	case "csv":
		return WriteCSV(w, rows)
	case "json":
		return WriteJSON(w, rows)
	}
	return fmt.Errorf("export: unknown format %q", format)
}
