package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/regconsole/internal/auth/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize console: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := application.Run(ctx, os.Args[1:])
	stop()

	if err := application.Close(); err != nil && code == app.ExitOK {
		code = app.ExitFail
	}
	os.Exit(code)
}
