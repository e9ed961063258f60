package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/interface/cli"
)

func main() {
	// Cancel the crawl on interrupt; workers finish their current fetch
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewApp(ctx, os.Stdout, os.Stderr).Run(os.Args[1:]); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %s\n", crawlerr.Summary(err))
		if crawlerr.IsKind(err, crawlerr.KindConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
