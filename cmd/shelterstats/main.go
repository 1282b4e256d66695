// Command shelterstats aggregates shelter visit counts from hiker trail
// journals and reports them as CSV, SQLite, Kafka messages or over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/trail-shelter-stats/cmd/shelterstats/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commands.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
