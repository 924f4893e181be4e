// roomctl はroomfinder APIのコマンドラインクライアント。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/roomfinder/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
