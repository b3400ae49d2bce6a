package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	ds, err := filepath.Abs(filepath.Join("..", "infra", "dataset", "testdata", "small.yaml"))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "dataset:\n  path: " + ds + "\nsolver:\n  backend:\n    type: gonum\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "validate", "-c", writeTestConfig(t))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"dataset small: 1 resources, 1 activities, 8 hours", "gonum", "prometheus"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestModelCommand(t *testing.T) {
	out, stats, err := execute(t, "model", "-c", writeTestConfig(t), "--target", "0.7", "--format", "lp")
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if !strings.HasPrefix(out, "\\ fleetplan(target_0.7,start_indexed)") || !strings.HasSuffix(out, "End\n") {
		t.Errorf("unexpected LP output:\n%s", out)
	}
	if !strings.Contains(stats, "variables") {
		t.Errorf("stats missing: %q", stats)
	}

	if _, _, err := execute(t, "model", "-c", writeTestConfig(t), "--target", "1.2"); err == nil {
		t.Fatal("expected construction error for target above 1")
	}
}

func TestSweepCommand(t *testing.T) {
	sweepTargets = nil
	out, _, err := execute(t, "sweep", "-c", writeTestConfig(t), "--targets", "0.7,0.9", "--format", "table")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows:\n%s", out)
	}
	if lines[2] != "| 70% | 7.00 | 0 | 2 | 2.00 | 28.6% |" {
		t.Errorf("unexpected row: %q", lines[2])
	}
	if !strings.Contains(lines[3], "FAILED (infeasible)") {
		t.Errorf("unexpected row: %q", lines[3])
	}
}
