package cli

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/udstore/internal/fs"
	"github.com/calvinalkan/udstore/internal/harness"
)

// BenchCmd returns the bench command.
func BenchCmd(cfg Config, fsys fs.FS) *Command {
	flags := flag.NewFlagSet("bench", flag.ContinueOnError)

	workers := flags.IntP("workers", "w", cfg.Workers, "concurrent goroutines per scenario")
	iterations := flags.IntP("iterations", "n", cfg.Iterations, "operations per goroutine")
	out := flags.StringP("out", "o", cfg.OutDir, "directory for the JSON report (empty: none)")
	list := flags.BoolP("list", "l", false, "list scenarios and exit")

	cmd := &Command{
		Flags: flags,
		Usage: "bench [scenario...]",
		Short: "Run store benchmarks",
		Long: "Run the userdata benchmark scenarios and print ns/op per scenario.\n" +
			"With no arguments, all scenarios run.",
	}

	cmd.Exec = func(_ context.Context, o *IO, args []string) error {
		if *list {
			for _, name := range harness.BenchmarkNames() {
				o.Println(name)
			}

			return nil
		}

		names := args
		if len(names) == 0 {
			names = harness.BenchmarkNames()
		}

		opts := harness.Options{Workers: *workers, Iterations: *iterations}

		rep := report[harness.Result]{
			Command:    "bench",
			StartedAt:  time.Now().UTC(),
			Workers:    opts.Workers,
			Iterations: opts.Iterations,
		}

		for _, name := range names {
			res, err := harness.RunBenchmark(name, opts)
			if err != nil {
				return err
			}

			o.Printf("%-14s %10d ops %12.1f ns/op %12s total\n",
				res.Scenario, res.Ops, res.NsPerOp, res.Elapsed.Round(time.Microsecond))

			rep.Results = append(rep.Results, res)
		}

		if *out != "" {
			path, err := writeReport(fsys, *out, fmt.Sprintf("bench-%d", time.Now().Unix()), rep)
			if err != nil {
				return err
			}

			o.Println("report:", path)
		}

		return nil
	}

	return cmd
}
