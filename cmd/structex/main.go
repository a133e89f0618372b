package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/i2y/structex/openai"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
