package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfrunes/mqttie/v5/cmd/mqttie/app"
	_ "go.uber.org/automaxprocs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	err := app.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
