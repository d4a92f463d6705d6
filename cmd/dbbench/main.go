// Command dbbench loads a CSV dataset into several database engines,
// benchmarks a fixed battery of queries against them, and backs up and
// restores the loaded tables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	// register every backend and dialect with the factories.
	_ "dbbench/internal/storage/all"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	c.shutdown()
	if err != nil {
		fmt.Fprintf(stderr, "dbbench: %v\n", err)
	}
	return exitCode(err)
}
