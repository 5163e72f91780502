package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/photogps/internal/constants"
	"github.com/benmeehan/photogps/internal/models"
	"github.com/fatih/color"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := constants.ExitOK
	cmd := newRootCommand(&exitCode)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error:"), err)
		return exitCodeFor(err)
	}
	return exitCode
}

// exitCodeFor maps a failed run to its exit code. A log that could not be saved
// after the photos were processed is a partial failure, not a configuration one.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return constants.ExitInterrupted
	case errors.Is(err, models.ErrLogWrite):
		return constants.ExitPartial
	default:
		return constants.ExitConfig
	}
}
