package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names exposed by the assistant's MCP server.
const (
	ToolClassify = "classify_message"
	ToolConverse = "converse"
)

// MCPClient reaches the assistant through MCP tool calls. Each tool returns
// its reply as JSON in the first text content block.
type MCPClient struct {
	session *mcpsdk.ClientSession
}

// ConnectMCP opens an MCP session over the given transport.
func ConnectMCP(ctx context.Context, transport mcpsdk.Transport, version string) (*MCPClient, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "convoprobe",
		Version: version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to assistant MCP server: %w", err)
	}
	return &MCPClient{session: session}, nil
}

// DialMCP connects to a streamable-HTTP MCP endpoint.
func DialMCP(ctx context.Context, endpoint, version string) (*MCPClient, error) {
	return ConnectMCP(ctx, &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, version)
}

// ClassifyOnce calls the classify_message tool.
func (c *MCPClient) ClassifyOnce(ctx context.Context, req ClassifyRequest) (*ClassifyReply, error) {
	args := map[string]any{"message": req.Message}
	if req.Attachment != "" {
		args["attachment"] = req.Attachment
	}

	var reply ClassifyReply
	if err := c.call(ctx, ToolClassify, args, &reply); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return &reply, nil
}

// Converse calls the converse tool.
func (c *MCPClient) Converse(ctx context.Context, req ConverseRequest) (*ConverseReply, error) {
	history := req.History
	if history == nil {
		history = []Message{}
	}
	args := map[string]any{
		"message":   req.Message,
		"history":   history,
		"sessionId": req.SessionID,
	}
	if req.Attachment != "" {
		args["attachment"] = req.Attachment
	}

	var reply ConverseReply
	if err := c.call(ctx, ToolConverse, args, &reply); err != nil {
		return nil, fmt.Errorf("converse: %w", err)
	}
	return &reply, nil
}

// Close ends the MCP session.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func (c *MCPClient) call(ctx context.Context, tool string, args map[string]any, out any) error {
	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return fmt.Errorf("call tool %s: %w", tool, err)
	}

	text := firstText(res)
	if res.IsError {
		if text == "" {
			text = "no detail"
		}
		return fmt.Errorf("tool %s failed: %s", tool, text)
	}
	if text == "" {
		return fmt.Errorf("tool %s returned no text content", tool)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode %s reply: %w", tool, err)
	}
	return nil
}

func firstText(res *mcpsdk.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			return strings.TrimSpace(tc.Text)
		}
	}
	return ""
}
