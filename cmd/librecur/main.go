// Command librecur expands and checkpoints iCalendar recurrence rules.
package main

import (
	"context"
	"os"
	"os/signal"

	_ "time/tzdata"

	"github.com/cyp0633/librecur/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(cli.GetExitCode(err))
}
