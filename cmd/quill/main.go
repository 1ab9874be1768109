package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"quill/internal/services"
)

// Exit codes let scripts tell a missing record from a refused or broken call.
const (
	exitFailure  = 1
	exitInvalid  = 2
	exitNotFound = 3
	exitDenied   = 4
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitFailure)
		}
		fmt.Fprintln(os.Stderr, "quill:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return exitInvalid
	case errors.Is(err, services.ErrNotFound):
		return exitNotFound
	case errors.Is(err, services.ErrAccessDenied):
		return exitDenied
	default:
		return exitFailure
	}
}
