package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tonimelisma/procore-go/internal/mirror"
)

// Exit codes. A run that wrote some files but not all is distinguished from
// one that could not run at all.
const (
	exitFailure        = 1
	exitPartialFailure = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitOnError(err))
	}
}

// exitOnError prints a user-friendly error message to stderr and returns the
// process exit code for err.
func exitOnError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	return exitCode(err)
}

func exitCode(err error) int {
	if errors.Is(err, mirror.ErrPartialFailure) {
		return exitPartialFailure
	}

	return exitFailure
}
