// ud is the developer tooling for the userdata store: benchmarks, invariant
// stress runs, and config inspection.
package main

import (
	"os"

	"github.com/calvinalkan/udstore/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdout, os.Stderr, os.Args[1:], os.Environ()))
}
