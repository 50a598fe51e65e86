// Recur answers a prompt by recursive refinement: a baseline answer, rounds
// of concurrently generated and graded alternatives, and selection of the
// highest-scoring answer.
//
// Usage:
//
//	# Offline dry run
//	recur --echo -p "Say hi" -n 1 -a 2
//
//	# Gemini (GOOGLE_API_KEY), with an audit of every graded answer
//	recur -p "Explain goroutines" -j audit.json
//
//	# Planned rounds for a prompt
//	recur rounds "Explain goroutines"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "recur: %v\n", err)
		stop()
		os.Exit(1)
	}
}
