package mcpcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/config"
	"github.com/papercomputeco/troubleshoot/pkg/logger"
	"github.com/papercomputeco/troubleshoot/pkg/mcpserver"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

const mcpLongDesc string = `Expose the troubleshooting assistant as an MCP tool over stdio.

The server offers a single tool, "diagnose", which takes a conversation
({"messages": [...]}) and returns the assistant's reply. The upstream is
configured exactly as for "troubleshoot serve". Logs go to stderr so
stdout stays reserved for the protocol.

Examples:
  troubleshoot mcp
  troubleshoot mcp --config troubleshoot.toml --debug`

const mcpShortDesc string = "Serve the assistant as an MCP tool over stdio"

type mcpCommander struct {
	configPath string
	debug      bool
	version    string
}

func NewMCPCmd(version string) *cobra.Command {
	cmder := &mcpCommander{version: version}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML configuration file")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	log := logger.New(logger.Options{
		Debug:  c.debug || cfg.Debug,
		JSON:   cfg.LogFormat == config.LogFormatJSON,
		Writer: os.Stderr,
	})
	defer func() { _ = log.Sync() }()

	server := newServer(cfg, c.version, log)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}

	return nil
}

func newServer(cfg config.Config, version string, log *zap.Logger) *mcpserver.Server {
	if cfg.APIKey == "" {
		log.Warn("no upstream credential configured, diagnose calls will be rejected upstream",
			zap.String("env", config.EnvAPIKey),
		)
	}

	return mcpserver.New(relay.New(cfg.Relay(), log), version, log)
}
