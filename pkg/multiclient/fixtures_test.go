package multiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// The tests run every server in-process over in-memory transports, so the
// stdio command in each ServerConfig is never executed.

func newToolServer(serverName, forecast string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: "0.1.0"}, nil)

	server.AddTool(&mcp.Tool{
		Name:        "get_weather",
		Description: "Get the weather for a location",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"location": {Type: "string"},
			},
			Required: []string{"location"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Location string `json:"location"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s in %s", forecast, args.Location)}},
		}, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "always_fails",
		Description: "Always returns an error",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, fmt.Errorf("intentional failure")
	})

	server.AddTool(&mcp.Tool{
		Name:        "slow_echo",
		Description: "Echoes its input after a delay",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text":     {Type: "string"},
				"delay_ms": {Type: "integer"},
			},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Text    string `json:"text"`
			DelayMS int    `json:"delay_ms"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		select {
		case <-time.After(time.Duration(args.DelayMS) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: args.Text}},
		}, nil
	})

	return server
}

// newEchoServer advertises one trivial echo tool per given name.
func newEchoServer(serverName string, toolNames ...string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: "0.1.0"}, nil)
	for _, name := range toolNames {
		toolName := name
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: "Echoes its own name",
			InputSchema: &jsonschema.Schema{Type: "object"},
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: toolName}},
			}, nil
		})
	}
	return server
}

func newResourceServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "resource_server", Version: "0.1.0"}, nil)

	server.AddResource(&mcp.Resource{
		URI:      "inventory://overview",
		Name:     "Inventory Overview",
		MIMEType: "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     "Inventory Overview: 12 items in stock",
			}},
		}, nil
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "inventory://item/{item_id}",
		Name:        "Inventory Item",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     "item details for " + req.Params.URI,
			}},
		}, nil
	})

	return server
}

func newPromptServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "prompt_server", Version: "0.1.0"}, nil)

	server.AddPrompt(&mcp.Prompt{
		Name:        "write_report",
		Description: "Draft a report on a topic",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Required: true},
			{Name: "length"},
		},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		topic := req.Params.Arguments["topic"]
		length := req.Params.Arguments["length"]
		if length == "" {
			length = "short"
		}
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: fmt.Sprintf("Write a %s report about %s.", length, topic)},
			}},
		}, nil
	})

	return server
}

// inMemoryFactory wires each configured server name to an in-process
// mcp.Server over a pair of in-memory transports.
func inMemoryFactory(t *testing.T, servers map[string]*mcp.Server) TransportFactory {
	t.Helper()
	return func(serverName string, cfg ServerConfig) (mcp.Transport, error) {
		server, ok := servers[serverName]
		if !ok {
			return nil, fmt.Errorf("no fixture server named %q", serverName)
		}
		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		if _, err := server.Connect(context.Background(), serverTransport, nil); err != nil {
			return nil, err
		}
		return clientTransport, nil
	}
}

// testConfig builds a config whose connection order is the argument order.
func testConfig(t *testing.T, names ...string) *MCPServersConfig {
	t.Helper()
	ordered := "{"
	for i, name := range names {
		if i > 0 {
			ordered += ","
		}
		ordered += fmt.Sprintf("%q:{\"command\":\"in-memory\"}", name)
	}
	ordered += "}"
	cfg, err := ParseConfig([]byte(`{"mcpServers":` + ordered + `}`))
	if err != nil {
		t.Fatalf("building test config: %v", err)
	}
	return cfg
}

// connectFixture builds and connects a Client over the given fixture servers.
func connectFixture(t *testing.T, servers map[string]*mcp.Server, opts *Options, names ...string) *Client {
	t.Helper()
	options := Options{}
	if opts != nil {
		options = *opts
	}
	options.Transport = inMemoryFactory(t, servers)

	client, err := NewFromConfig(testConfig(t, names...), &options)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}
