// Package mcpserver exposes the relay as a Model Context Protocol tool, so
// agents can ask the troubleshooting assistant directly.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

// ToolName is the name of the single tool the server offers.
const ToolName = "diagnose"

const toolDescription = `Ask an automotive troubleshooting assistant to help diagnose a car problem.

Pass the whole conversation on every call, oldest turn first. Start a new
conversation with a single user turn describing the symptoms; continue it by
resending every previous user and assistant turn followed by the new user turn.`

// Relayer relays a conversation and returns the generated reply.
type Relayer interface {
	Handle(ctx context.Context, turns []llm.Message) (string, error)
}

// DiagnoseInput is the diagnose tool's argument object.
type DiagnoseInput struct {
	Messages []llm.Message `json:"messages" jsonschema:"the conversation so far, oldest turn first"`
}

// DiagnoseOutput is the diagnose tool's structured result.
type DiagnoseOutput struct {
	Reply string `json:"reply" jsonschema:"the assistant's reply"`
}

// Server is an MCP server with the diagnose tool.
type Server struct {
	server *mcp.Server
	relay  Relayer
	logger *zap.Logger
}

// New creates a Server backed by relayer.
func New(relayer Relayer, version string, logger *zap.Logger) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: "troubleshoot", Version: version}, nil),
		relay:  relayer,
		logger: logger,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolName,
		Description: toolDescription,
	}, s.diagnose)

	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) diagnose(ctx context.Context, _ *mcp.CallToolRequest, in DiagnoseInput) (*mcp.CallToolResult, DiagnoseOutput, error) {
	reply, err := s.relay.Handle(ctx, in.Messages)
	if err != nil {
		s.logger.Error("diagnose failed",
			zap.String("kind", string(relay.KindOf(err))),
			zap.Error(err),
		)
		// Returned as a tool error result, not a protocol error.
		return nil, DiagnoseOutput{}, err
	}

	s.logger.Info("diagnose relayed", zap.Int("turns", len(in.Messages)))
	return nil, DiagnoseOutput{Reply: reply}, nil
}
