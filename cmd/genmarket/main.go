// Command genmarket is the entry point for the GenLayer prediction market
// tooling: contract deployment, the HTTP backend and a CLI over the contract.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/genmarket/internal/deploy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if application != nil {
		application.Close()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return deploy.ExitCode(err)
}
