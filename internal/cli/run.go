package cli

import (
	"context"
	"errors"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/udstore/internal/fs"
)

const helpFlag = "--help"

// globalFlags are parsed before the command name.
type globalFlags struct {
	configPath string
	workDir    string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	flags := flag.NewFlagSet("ud", flag.ContinueOnError)
	flags.SetInterspersed(false)

	configPath := flags.StringP("config", "c", "", "explicit config file")
	workDir := flags.StringP("dir", "C", "", "working directory for config resolution")

	if err := flags.Parse(args); err != nil {
		return globalFlags{}, err
	}

	return globalFlags{
		configPath: *configPath,
		workDir:    *workDir,
		remaining:  flags.Args(),
	}, nil
}

// Run is the main entry point. Returns the exit code.
func Run(out, errOut io.Writer, args []string, env []string) int {
	o := NewIO(out, errOut)

	flags, err := parseGlobalFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, nil)

			return 0
		}

		o.Errorln("error:", err)

		return 1
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			o.Errorln("error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, sources, err := LoadConfig(workDir, flags.configPath, env)
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	fsys := fs.NewReal()

	commands := []*Command{
		BenchCmd(cfg, fsys),
		StressCmd(cfg, fsys),
		PrintConfigCmd(cfg, sources),
	}

	if len(flags.remaining) == 0 {
		printUsage(o, commands)

		return 0
	}

	name := flags.remaining[0]
	if name == "-h" || name == helpFlag || name == "help" {
		printUsage(o, commands)

		return 0
	}

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}

		rest := flags.remaining[1:]

		for _, a := range rest {
			if a == "-h" || a == helpFlag {
				cmd.PrintHelp(o)

				return 0
			}
		}

		if err := cmd.Flags.Parse(rest); err != nil {
			o.Errorln("error:", err)

			return 1
		}

		if err := cmd.Exec(context.Background(), o, cmd.Flags.Args()); err != nil {
			o.Errorln("error:", err)
			o.Finish()

			return 1
		}

		return o.Finish()
	}

	o.Errorln("error: unknown command:", name)
	printUsage(o, commands)

	return 1
}

func printUsage(o *IO, commands []*Command) {
	o.Println("ud - userdata store tooling")
	o.Println()
	o.Println("Usage: ud [global flags] <command> [flags]")
	o.Println()
	o.Println("Commands:")

	for _, cmd := range commands {
		o.Println(cmd.HelpLine())
	}

	o.Println()
	o.Println("Global flags:")
	o.Println("  -c, --config <file>      explicit config file")
	o.Println("  -C, --dir <dir>          working directory for config resolution")
	o.Println()
	o.Println("Run 'ud <command> --help' for command details.")
}
