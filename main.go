// ./main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/rebootctl/cmd"
	"github.com/xkilldash9x/rebootctl/internal/observability"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

// main is the entry point of the application. Exit status is 0 when the
// command succeeded and 1 for any failure, including a panic.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		osExit(1)
	}
}

// handlePanic turns a panic into a logged failure with exit status 1.
func handlePanic() {
	if r := recover(); r != nil {
		if observability.IsInitialized() {
			observability.GetLogger().Error(fmt.Sprintf("panic: %v", r))
		}
		observability.Sync()
		fmt.Fprintf(os.Stderr, "panic: %v\n\n%s\n", r, debug.Stack())
		osExit(1)
	}
}
