package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/bacalhau-project/jobconf/cmd/cli"
	_ "github.com/bacalhau-project/jobconf/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cli.Execute(ctx)
}
