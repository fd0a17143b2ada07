// Package main provides the stoac CLI for storing and recalling shell commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := NewApp().RunContext(ctx, os.Args)
	stop()
	os.Exit(code)
}
