package cli

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/udstore/internal/fs"
	"github.com/calvinalkan/udstore/internal/harness"
)

// StressCmd returns the stress command.
func StressCmd(cfg Config, fsys fs.FS) *Command {
	flags := flag.NewFlagSet("stress", flag.ContinueOnError)

	workers := flags.IntP("workers", "w", cfg.Workers, "concurrent goroutines per scenario")
	iterations := flags.IntP("iterations", "n", 0, "rounds per scenario (default: iterations/1000, min 1)")
	out := flags.StringP("out", "o", cfg.OutDir, "directory for the JSON report (empty: none)")
	list := flags.BoolP("list", "l", false, "list scenarios and exit")

	cmd := &Command{
		Flags: flags,
		Usage: "stress [scenario...]",
		Short: "Run invariant-checking soak scenarios",
		Long: "Run the userdata stress scenarios. Each scenario races workers against\n" +
			"the store and checks its invariants: factory-once semantics, copy\n" +
			"independence, handle equality, and copy lock ordering. Any violation\n" +
			"fails the run.",
	}

	cmd.Exec = func(_ context.Context, o *IO, args []string) error {
		if *list {
			for _, name := range harness.StressNames() {
				o.Println(name)
			}

			return nil
		}

		names := args
		if len(names) == 0 {
			names = harness.StressNames()
		}

		// Stress rounds are whole multi-worker races, so the useful counts
		// are orders of magnitude below bench iteration counts.
		rounds := *iterations
		if rounds == 0 {
			rounds = max(cfg.Iterations/1000, 1)
		}

		opts := harness.Options{Workers: *workers, Iterations: rounds}

		rep := report[harness.StressReport]{
			Command:    "stress",
			StartedAt:  time.Now().UTC(),
			Workers:    opts.Workers,
			Iterations: opts.Iterations,
		}

		failed := 0

		for _, name := range names {
			res, err := harness.RunStress(name, opts)
			if err != nil {
				return err
			}

			status := "ok"
			if !res.Passed() {
				status = fmt.Sprintf("FAIL (%d violations)", len(res.Violations))
				failed++

				for _, v := range res.Violations {
					o.Warn("%s: %s", name, v)
				}
			}

			o.Printf("%-20s %d rounds x %d workers: %s\n", res.Scenario, res.Iterations, res.Workers, status)

			rep.Results = append(rep.Results, res)
		}

		if *out != "" {
			path, err := writeReport(fsys, *out, fmt.Sprintf("stress-%d", time.Now().Unix()), rep)
			if err != nil {
				return err
			}

			o.Println("report:", path)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios reported violations", failed, len(names))
		}

		return nil
	}

	return cmd
}
