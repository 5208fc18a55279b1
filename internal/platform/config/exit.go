package config

import (
	"fmt"
	"os"
)

// Exitf reports a startup failure on stderr and exits with code 1. The
// server entry point calls it when the environment cannot be parsed,
// before any logging is configured.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
