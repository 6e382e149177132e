package config

import (
	"fmt"
	"os"
)

// exitStatusUsage is the process status for configuration and flag errors.
const exitStatusUsage = 1

// Exitf reports a fatal configuration error on stderr and terminates the
// process. Entry points call it when flag or environment parsing fails.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(exitStatusUsage)
}
