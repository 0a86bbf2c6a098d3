// Command troubleshoot serves an automotive troubleshooting chat assistant
// and the clients that talk to it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/troubleshoot/cmd/troubleshoot/chat"
	mcpcmder "github.com/papercomputeco/troubleshoot/cmd/troubleshoot/mcp"
	servecmder "github.com/papercomputeco/troubleshoot/cmd/troubleshoot/serve"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "troubleshoot",
		Short:        "Automotive troubleshooting chat assistant",
		Long:         "Serve a chat page that relays conversations to a completion API, or talk to one from the terminal.",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		servecmder.NewServeCmd(),
		chatcmder.NewChatCmd(),
		mcpcmder.NewMCPCmd(version),
	)

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
