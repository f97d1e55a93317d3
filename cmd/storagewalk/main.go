// Command storagewalk walks the key-value storage of a chain node.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tarantool/go-storage-walker/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
