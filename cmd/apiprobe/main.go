// Command apiprobe sends requests through the configured API client and
// prints the response body or the classified failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayska/apiclient/app"
	"github.com/ayska/apiclient/cmd/apiprobe/internal/commands"
)

var version = "dev" // set during build

func main() {
	rootCmd := &cobra.Command{
		Use:   "apiprobe",
		Short: "Send requests through the resilient API client",
		Long: `apiprobe runs one request through the same pipeline applications use:
request IDs, throttling, bearer auth with refresh, retries with backoff and
error classification. Configuration comes from config.yaml and APICLIENT_*
environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		commands.NewRequestCommand(app.Options{}),
		commands.NewVersionCommand(version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
