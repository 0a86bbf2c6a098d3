// Package proxy serves the chat front-end and relays /api/chat calls to the
// upstream completion API.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
	"github.com/papercomputeco/troubleshoot/web"
)

const requestIDKey = "requestid"

// Relayer relays a conversation and returns the generated reply.
type Relayer interface {
	Handle(ctx context.Context, turns []llm.Message) (string, error)
}

// Page provides the index page body.
type Page interface {
	Body() []byte
}

// Proxy is the HTTP face of the relay. It holds no conversation state: every
// /api/chat call carries its whole conversation.
type Proxy struct {
	config Config
	relay  Relayer
	page   Page
	logger *zap.Logger
	server *fiber.App
}

// New creates a new Proxy.
func New(config Config, relayer Relayer, page Page, logger *zap.Logger) *Proxy {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          config.writeTimeout(),
		IdleTimeout:           60 * time.Second,
	})

	p := &Proxy{
		config: config,
		relay:  relayer,
		page:   page,
		logger: logger,
		server: app,
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(p.logRequest)

	// Register routes
	app.Get("/", p.handleIndex)
	app.Use("/static", adaptor.HTTPHandler(
		http.StripPrefix("/static", http.FileServer(http.FS(web.Assets()))),
	))
	app.Post("/api/chat", p.handleChat)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return p
}

// RunWithListener starts the server on an existing listener.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	p.logger.Info("starting troubleshoot server", zap.String("listen", ln.Addr().String()))

	return p.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight calls until
// ctx is done.
func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.server.ShutdownWithContext(ctx)
}

func (p *Proxy) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(p.page.Body())
}

// handleChat relays one conversation. Every failure, whatever its kind, is
// reported as 500 {"success": false, "error": ...}.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	if !c.Is("json") {
		return p.fail(c, relay.InputError(fmt.Errorf("unsupported content type %q, expected application/json",
			c.Get(fiber.HeaderContentType))))
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return p.fail(c, relay.InputError(fmt.Errorf("invalid request body: %w", err)))
	}

	reply, err := p.relay.Handle(c.UserContext(), req.Messages)
	if err != nil {
		return p.fail(c, err)
	}

	p.logger.Info("relayed chat",
		zap.Any("request_id", c.Locals(requestIDKey)),
		zap.Int("turns", len(req.Messages)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(llm.ChatResponse{Success: true, Message: reply})
}

func (p *Proxy) fail(c *fiber.Ctx, err error) error {
	p.logger.Error("chat relay failed",
		zap.Any("request_id", c.Locals(requestIDKey)),
		zap.String("kind", string(relay.KindOf(err))),
		zap.Error(err),
	)

	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func (p *Proxy) logRequest(c *fiber.Ctx) error {
	startTime := time.Now()
	err := c.Next()

	p.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(startTime)),
		zap.Any("request_id", c.Locals(requestIDKey)),
	)

	return err
}
