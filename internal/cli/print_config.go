package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg Config, sources ConfigSources) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Print resolved configuration",
		Long:  "Print the effective configuration and which config files produced it.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			o.Println("workers:   ", cfg.Workers)
			o.Println("iterations:", cfg.Iterations)

			outDir := cfg.OutDir
			if outDir == "" {
				outDir = "(none)"
			}

			o.Println("out_dir:   ", outDir)

			o.Println()

			if sources.Global != "" {
				o.Println("global config: ", sources.Global)
			}

			if sources.Project != "" {
				o.Println("project config:", sources.Project)
			}

			if sources.Global == "" && sources.Project == "" {
				o.Println("no config files loaded (defaults)")
			}

			return nil
		},
	}
}
