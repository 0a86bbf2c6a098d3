package servecmder

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/config"
	"github.com/papercomputeco/troubleshoot/pkg/logger"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
	"github.com/papercomputeco/troubleshoot/proxy"
	"github.com/papercomputeco/troubleshoot/web"
)

const serveLongDesc string = `Serve the troubleshooting chat page and its /api/chat relay.

Configuration is read from an optional TOML file, then from the
environment (a .env file in the working directory is loaded first).
OPENAI_API_KEY supplies the upstream credential and PORT the listening
port (default 5000).

Examples:
  troubleshoot serve
  PORT=8080 troubleshoot serve --debug
  troubleshoot serve --config troubleshoot.toml --index ./web/static/index.html`

const serveShortDesc string = "Serve the chat page and relay"

// shutdownGrace is added to the upstream timeout when draining in-flight
// requests on shutdown.
const shutdownGrace = 5 * time.Second

type serveCommander struct {
	configPath string
	indexPath  string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML configuration file")
	cmd.Flags().StringVar(&cmder.indexPath, "index", "", "Serve the page from this file and reload it on change")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if c.debug {
		cfg.Debug = true
	}
	if c.indexPath != "" {
		cfg.IndexPath = c.indexPath
	}

	log := logger.New(logger.Options{
		Debug: cfg.Debug,
		JSON:  cfg.LogFormat == config.LogFormatJSON,
	})
	defer func() { _ = log.Sync() }()

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.ListenAddr(), err)
	}

	return serve(ctx, cfg, ln, log)
}

// serve runs the server on ln until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, cfg config.Config, ln net.Listener, log *zap.Logger) error {
	if cfg.APIKey == "" {
		log.Warn("no upstream credential configured, chat requests will be rejected upstream",
			zap.String("env", config.EnvAPIKey),
		)
	}

	page, err := web.NewPage(cfg.IndexPath, log)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("could not load page: %w", err)
	}
	defer page.Close()

	r := relay.New(cfg.Relay(), log)
	timeout := r.Config().Timeout

	p := proxy.New(proxy.Config{RelayTimeout: timeout}, r, page, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.RunWithListener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout+shutdownGrace)
	defer cancel()

	if err := p.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down cleanly: %w", err)
	}

	return <-errCh
}
