package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/udstore/internal/cli"
)

// runCLI invokes the dispatcher in an isolated temp working directory.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var out, errOut bytes.Buffer

	full := append([]string{"--dir", t.TempDir()}, args...)
	code := cli.Run(&out, &errOut, full, noGlobalEnv(t))

	return code, out.String(), errOut.String()
}

func Test_Run_Prints_Usage_Without_Arguments(t *testing.T) {
	t.Parallel()

	code, out, _ := runCLI(t)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(out, "Usage: ud") || !strings.Contains(out, "bench") {
		t.Fatalf("usage output missing expected text:\n%s", out)
	}
}

func Test_Run_Fails_On_Unknown_Command(t *testing.T) {
	t.Parallel()

	code, _, errOut := runCLI(t, "frobnicate")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(errOut, "unknown command") {
		t.Fatalf("stderr missing unknown-command error:\n%s", errOut)
	}
}

func Test_Run_Bench_List_Prints_Scenarios(t *testing.T) {
	t.Parallel()

	code, out, _ := runCLI(t, "bench", "--list")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	for _, want := range []string{"bind", "get-hit", "set", "copy"} {
		if !strings.Contains(out, want) {
			t.Errorf("scenario %q missing from list:\n%s", want, out)
		}
	}
}

func Test_Run_Bench_Executes_Named_Scenario(t *testing.T) {
	t.Parallel()

	code, out, errOut := runCLI(t, "bench", "-w", "2", "-n", "100", "set")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, errOut)
	}

	if !strings.Contains(out, "set") || !strings.Contains(out, "ns/op") {
		t.Fatalf("bench output missing result line:\n%s", out)
	}
}

func Test_Run_Bench_Fails_On_Unknown_Scenario(t *testing.T) {
	t.Parallel()

	code, _, errOut := runCLI(t, "bench", "nope")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(errOut, "unknown benchmark scenario") {
		t.Fatalf("stderr missing scenario error:\n%s", errOut)
	}
}

func Test_Run_Bench_Writes_Report_File(t *testing.T) {
	t.Parallel()

	outDir := filepath.Join(t.TempDir(), "reports")

	code, out, errOut := runCLI(t, "bench", "-w", "1", "-n", "50", "-o", outDir, "set")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, errOut)
	}

	if !strings.Contains(out, "report:") {
		t.Fatalf("no report path in output:\n%s", out)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("reading report dir: %v", err)
	}

	var reportPath string

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "bench-") && strings.HasSuffix(e.Name(), ".json") {
			reportPath = filepath.Join(outDir, e.Name())
		}
	}

	if reportPath == "" {
		t.Fatalf("no bench report in %s: %v", outDir, entries)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}

	var rep struct {
		Command string `json:"command"`
		Results []struct {
			Scenario string `json:"scenario"`
			Ops      int64  `json:"ops"`
		} `json:"results"`
	}

	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, data)
	}

	if rep.Command != "bench" || len(rep.Results) != 1 || rep.Results[0].Scenario != "set" {
		t.Fatalf("unexpected report: %+v", rep)
	}

	if rep.Results[0].Ops != 50 {
		t.Fatalf("Ops = %d, want 50", rep.Results[0].Ops)
	}
}

func Test_Run_Stress_Passes_With_Small_Counts(t *testing.T) {
	t.Parallel()

	code, out, errOut := runCLI(t, "stress", "-w", "4", "-n", "5")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, errOut)
	}

	if !strings.Contains(out, "factory-once") || !strings.Contains(out, "ok") {
		t.Fatalf("stress output missing pass lines:\n%s", out)
	}
}

func Test_Run_PrintConfig_Shows_Resolved_Values(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, cli.ConfigFileName), `{"workers": 3}`)

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{"--dir", dir, "print-config"}, noGlobalEnv(t))
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, errOut.String())
	}

	if !strings.Contains(out.String(), "workers:    3") {
		t.Fatalf("print-config output missing workers:\n%s", out.String())
	}

	if !strings.Contains(out.String(), "project config:") {
		t.Fatalf("print-config output missing project source:\n%s", out.String())
	}
}

func Test_Run_Command_Help_Prints_Flags(t *testing.T) {
	t.Parallel()

	code, out, _ := runCLI(t, "bench", "--help")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(out, "Usage: ud bench") || !strings.Contains(out, "--workers") {
		t.Fatalf("bench help missing flags:\n%s", out)
	}
}
