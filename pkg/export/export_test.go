package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/fleetplan/core/extract"
	"github.com/kilianp07/fleetplan/core/solver"
	"github.com/kilianp07/fleetplan/core/sweep"
)

func sampleRows() []sweep.Row {
	inc := 123.456
	return []sweep.Row{
		{Index: 0, Target: 0.2, Status: solver.Optimal, WallTime: 40 * time.Millisecond, Summary: &extract.Summary{
			Target: 0.2, TotalCost: 5344, EnergyCost: 344, OffHoursCost: 5000, OffHoursHours: 5,
			PenaltyCost: 5000, PenaltyShare: 5000.0 / 5344, Optimal: true,
		}},
		{Index: 1, Target: 0.5, Status: solver.Feasible, Summary: &extract.Summary{
			Target: 0.5, TotalCost: 10.5, EnergyCost: 10.5,
		}},
		{Index: 2, Target: 0.9, Status: solver.Infeasible, Failed: true, Reason: sweep.ReasonInfeasible},
		{Index: 3, Target: 1, Status: solver.TimedOut, Failed: true, Reason: sweep.ReasonTimedOut, IncumbentObjective: &inc},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, sampleRows()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		TableHeader,
		"|---|---|---|---|---|---|",
		"| 20% | 5344.00 | 0 | 5 | 5000.00 | 93.6% |",
		"| 50% | 10.50 * | 0 | 0 | 0.00 | 0.0% |",
		"| 90% | FAILED (infeasible) | - | - | - | - |",
		"| 100% | FAILED (timed_out, incumbent 123.46) | - | - | - | - |",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d:\n got %q\nwant %q", i, lines[i], want[i])
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("write: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 5 || recs[0][0] != "target" {
		t.Fatalf("unexpected records: %v", recs)
	}
	if recs[1][1] != "optimal" || recs[1][4] != "5344" || recs[1][13] != "40" {
		t.Errorf("unexpected solved row: %v", recs[1])
	}
	if recs[3][2] != "true" || recs[3][3] != "infeasible" || recs[3][4] != "" {
		t.Errorf("failed row must not carry costs: %v", recs[3])
	}
	if recs[4][12] != "123.456" {
		t.Errorf("incumbent missing: %v", recs[4])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRows()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(out))
	}
	if out[0]["status"] != "optimal" {
		t.Errorf("status should be textual: %v", out[0]["status"])
	}
	if _, ok := out[2]["summary"]; ok {
		t.Errorf("failed row must not carry a summary: %v", out[2])
	}

	buf.Reset()
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestWriteFormats(t *testing.T) {
	for _, f := range []string{"", "table", "csv", "json"} {
		if err := Write(&bytes.Buffer{}, f, sampleRows()); err != nil {
			t.Errorf("%q: %v", f, err)
		}
	}
	if err := Write(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Errorf("expected unknown format error")
	}
}
