// Command fiirank screens and ranks Brazilian real-estate investment funds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fiirank/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	infrastructure.CloseLogFile()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
