package multiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client connects to every server named in an MCPServersConfig, aggregates
// their advertised tools, resources, resource templates, and prompts into one
// merged namespace, and routes calls to the owning server. Tool and prompt
// names route through flat last-registration-wins maps; resources route
// through server-namespaced URIs.
//
// A Client moves through connected epochs: Connect dials every server and
// takes capability snapshots, Close tears everything down again, and the same
// instance can then Connect for a fresh epoch. A failed or exited server is
// not pruned or re-dialed mid-epoch.
type Client struct {
	mu sync.RWMutex

	configPath string
	config     *MCPServersConfig

	opts    Options
	logger  *slog.Logger
	metrics *clientMetrics

	sessions       map[string]*serverSession
	capabilities   map[string]*ServerCapabilities
	toolToServer   map[string]string
	promptToServer map[string]string
	connectOrder   []string
	connected      bool
	epochID        string
}

// New creates a Client that will read its configuration from path. The file
// is loaded lazily: a missing or malformed file only surfaces from Connect.
func New(configPath string, opts *Options) *Client {
	c := newClient(opts)
	c.configPath = configPath
	return c
}

// NewFromConfig creates a Client from an already-built configuration, which
// is validated eagerly.
func NewFromConfig(cfg *MCPServersConfig, opts *Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := newClient(opts)
	c.config = cfg
	return c, nil
}

func newClient(opts *Options) *Client {
	options := opts.withDefaults()
	return &Client{
		opts:           options,
		logger:         options.Logger,
		metrics:        newClientMetrics(options.MetricsRegisterer),
		sessions:       make(map[string]*serverSession),
		capabilities:   make(map[string]*ServerCapabilities),
		toolToServer:   make(map[string]string),
		promptToServer: make(map[string]string),
	}
}

// Connect dials every configured server in config order, performing the
// handshake and taking a capability snapshot for each. It is fail-fast: the
// first server that cannot be reached aborts the attempt, sessions already
// opened are closed again, and the error propagates. Connect on an
// already-connected client fails with ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("multiclient: %w", ErrAlreadyConnected)
	}
	if c.config == nil {
		cfg, err := LoadConfig(c.configPath)
		if err != nil {
			return err
		}
		c.config = cfg
	}

	c.epochID = uuid.NewString()
	for _, name := range c.config.ServerNames() {
		if err := c.connectServerLocked(ctx, name, c.config.Servers[name]); err != nil {
			if closeErr := c.teardownLocked(context.WithoutCancel(ctx)); closeErr != nil {
				c.logger.Warn("teardown after failed connect", "epoch", c.epochID, "error", closeErr)
			}
			return err
		}
	}
	c.connected = true
	c.metrics.setConnected(len(c.sessions))
	c.logger.Debug("connected to all servers", "epoch", c.epochID, "servers", len(c.sessions))
	return nil
}

func (c *Client) connectServerLocked(ctx context.Context, name string, cfg ServerConfig) error {
	transport, err := c.opts.Transport(name, cfg)
	if err != nil {
		return fmt.Errorf("multiclient: transport for server %q: %w", name, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	impl := &mcp.Implementation{Name: c.opts.ClientName, Version: c.opts.ClientVersion}
	client := mcp.NewClient(impl, &mcp.ClientOptions{
		LoggingMessageHandler: forwardServerLogs(c.logger, name),
	})
	mcpSession, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		return fmt.Errorf("multiclient: connect server %q: %w", name, err)
	}

	session := &serverSession{name: name, session: mcpSession}
	caps, err := session.snapshot(connectCtx)
	if err != nil {
		_ = session.close()
		return fmt.Errorf("multiclient: snapshot capabilities of server %q: %w", name, err)
	}

	c.sessions[name] = session
	c.capabilities[name] = caps
	c.connectOrder = append(c.connectOrder, name)
	c.registerRoutesLocked(caps)
	c.logger.Debug("connected to server", "epoch", c.epochID, "server", name)
	return nil
}

// registerRoutesLocked folds one snapshot into the flat tool and prompt
// routing maps. Last registration wins; a name already claimed by another
// server is taken over with a logged warning, never an error.
func (c *Client) registerRoutesLocked(caps *ServerCapabilities) {
	if caps.Tools != nil {
		for _, tool := range caps.Tools.Tools {
			if prev, ok := c.toolToServer[tool.Name]; ok && prev != caps.Name {
				c.logger.Warn("tool collision detected, last registration wins",
					"tool", tool.Name, "registered_server", prev, "overriding_server", caps.Name)
				c.metrics.observeCollision("tool")
			}
			c.toolToServer[tool.Name] = caps.Name
		}
	}
	if caps.Prompts != nil {
		for _, prompt := range caps.Prompts.Prompts {
			if prev, ok := c.promptToServer[prompt.Name]; ok && prev != caps.Name {
				c.logger.Warn("prompt collision detected, last registration wins",
					"prompt", prompt.Name, "registered_server", prev, "overriding_server", caps.Name)
				c.metrics.observeCollision("prompt")
			}
			c.promptToServer[prompt.Name] = caps.Name
		}
	}
}

// Close tears down every session in reverse connection order and resets the
// routing maps and capability snapshots, leaving the client ready for a
// fresh Connect. Closing a never-connected client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teardownLocked(ctx)
}

func (c *Client) teardownLocked(_ context.Context) error {
	var errs []error
	for i := len(c.connectOrder) - 1; i >= 0; i-- {
		name := c.connectOrder[i]
		if session, ok := c.sessions[name]; ok {
			if err := session.close(); err != nil {
				errs = append(errs, fmt.Errorf("multiclient: close server %q: %w", name, err))
			}
		}
	}
	c.sessions = make(map[string]*serverSession)
	c.capabilities = make(map[string]*ServerCapabilities)
	c.toolToServer = make(map[string]string)
	c.promptToServer = make(map[string]string)
	c.connectOrder = nil
	c.connected = false
	c.metrics.setConnected(0)
	return errors.Join(errs...)
}

// Connected reports whether the client is inside a connected epoch.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Capabilities returns the capability snapshot of every connected server,
// keyed by server name. Empty if never connected.
func (c *Client) Capabilities() map[string]*ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*ServerCapabilities, len(c.capabilities))
	for name, caps := range c.capabilities {
		out[name] = caps
	}
	return out
}

// ListTools returns every connected server's tools concatenated in
// connection order, each stamped with a serverName metadata field. Duplicate
// names are not collapsed; collisions only affect routing, not listing.
func (c *Client) ListTools() *mcp.ListToolsResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &mcp.ListToolsResult{Tools: []*mcp.Tool{}}
	for _, name := range c.connectOrder {
		caps := c.capabilities[name]
		if caps == nil || caps.Tools == nil {
			continue
		}
		for _, tool := range caps.Tools.Tools {
			out.Tools = append(out.Tools, attributeTool(tool, name))
		}
	}
	return out
}

// ListPrompts returns every connected server's prompts concatenated in
// connection order, each stamped with a serverName metadata field.
func (c *Client) ListPrompts() *mcp.ListPromptsResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}
	for _, name := range c.connectOrder {
		caps := c.capabilities[name]
		if caps == nil || caps.Prompts == nil {
			continue
		}
		for _, prompt := range caps.Prompts.Prompts {
			out.Prompts = append(out.Prompts, attributePrompt(prompt, name))
		}
	}
	return out
}

// ListResources returns every connected server's resources concatenated in
// connection order. When useNamespace is true (the form list consumers
// should normally use) each URI is rewritten to "serverName:originalURI" so
// ReadResource can auto-route it later.
func (c *Client) ListResources(useNamespace bool) *mcp.ListResourcesResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}
	for _, name := range c.connectOrder {
		caps := c.capabilities[name]
		if caps == nil || caps.Resources == nil {
			continue
		}
		for _, resource := range caps.Resources.Resources {
			out.Resources = append(out.Resources, attributeResource(resource, name, useNamespace))
		}
	}
	return out
}

// ListResourceTemplates is ListResources for URI templates.
func (c *Client) ListResourceTemplates(useNamespace bool) *mcp.ListResourceTemplatesResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &mcp.ListResourceTemplatesResult{ResourceTemplates: []*mcp.ResourceTemplate{}}
	for _, name := range c.connectOrder {
		caps := c.capabilities[name]
		if caps == nil || caps.ResourceTemplates == nil {
			continue
		}
		for _, tpl := range caps.ResourceTemplates.ResourceTemplates {
			out.ResourceTemplates = append(out.ResourceTemplates, attributeResourceTemplate(tpl, name, useNamespace))
		}
	}
	return out
}

// CallTool invokes a tool, auto-routing by name when serverName is empty and
// validating the explicit server otherwise. Routing failures are returned as
// typed errors before any session I/O; errors from the session itself
// propagate unchanged.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, serverName string) (*mcp.CallToolResult, error) {
	return c.CallToolWithParams(ctx, &mcp.CallToolParams{Name: name, Arguments: arguments}, serverName)
}

// CallToolWithParams is CallTool for callers that need to carry extra
// CallToolParams fields, such as request metadata.
func (c *Client) CallToolWithParams(ctx context.Context, params *mcp.CallToolParams, serverName string) (*mcp.CallToolResult, error) {
	if params == nil || params.Name == "" {
		return nil, fmt.Errorf("multiclient: tool name is required: %w", ErrUnknownTool)
	}
	session, err := c.resolveToolSession(params.Name, serverName)
	if err != nil {
		c.metrics.observeRoutingError(routingErrorKind(err))
		return nil, err
	}
	res, err := session.callTool(ctx, params)
	if err != nil {
		c.metrics.observeToolCall(session.name, true)
		return nil, err
	}
	c.metrics.observeToolCall(session.name, res != nil && res.IsError)
	return res, nil
}

func (c *Client) resolveToolSession(name, serverName string) (*serverSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if serverName != "" {
		session, ok := c.sessions[serverName]
		if !ok {
			return nil, fmt.Errorf("multiclient: unknown server %q: %w", serverName, ErrUnknownServer)
		}
		caps := c.capabilities[serverName]
		if caps == nil || caps.Tools == nil || len(caps.Tools.Tools) == 0 {
			return nil, fmt.Errorf("multiclient: server %q has no tools: %w", serverName, ErrServerHasNoTools)
		}
		if !hasToolNamed(caps.Tools.Tools, name) {
			return nil, fmt.Errorf("multiclient: tool %q not found in server %q: %w", name, serverName, ErrToolNotInServer)
		}
		return session, nil
	}

	owner, ok := c.toolToServer[name]
	if !ok {
		return nil, fmt.Errorf("multiclient: unknown tool %q: %w", name, ErrUnknownTool)
	}
	return c.sessions[owner], nil
}

// ReadResource reads a resource, resolving the target server from the URI's
// namespace prefix when present. An explicit serverName means the URI is
// taken as-is, un-namespaced. A URI with neither namespace nor explicit
// server is ambiguous and rejected rather than guessed at.
func (c *Client) ReadResource(ctx context.Context, uri string, serverName string) (*mcp.ReadResourceResult, error) {
	session, bareURI, err := c.resolveResourceSession(uri, serverName)
	if err != nil {
		c.metrics.observeRoutingError(routingErrorKind(err))
		return nil, err
	}
	return session.readResource(ctx, bareURI)
}

func (c *Client) resolveResourceSession(uri, serverName string) (*serverSession, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if serverName == "" {
		owner, bareURI, ok := splitNamespacedURI(uri)
		if !ok {
			return nil, "", fmt.Errorf("multiclient: resource %q has no namespace, must specify server_name: %w", uri, ErrAmbiguousResource)
		}
		session, connected := c.sessions[owner]
		if !connected {
			return nil, "", fmt.Errorf("multiclient: unknown server %q: %w", owner, ErrUnknownServer)
		}
		return session, bareURI, nil
	}

	session, ok := c.sessions[serverName]
	if !ok {
		return nil, "", fmt.Errorf("multiclient: unknown server %q: %w", serverName, ErrUnknownServer)
	}
	return session, uri, nil
}

// GetPrompt fetches a prompt, auto-routing by name when serverName is empty
// and validating the explicit server otherwise, with the same precondition
// chain as CallTool.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string, serverName string) (*mcp.GetPromptResult, error) {
	session, err := c.resolvePromptSession(name, serverName)
	if err != nil {
		c.metrics.observeRoutingError(routingErrorKind(err))
		return nil, err
	}
	return session.getPrompt(ctx, name, arguments)
}

func (c *Client) resolvePromptSession(name, serverName string) (*serverSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if serverName != "" {
		session, ok := c.sessions[serverName]
		if !ok {
			return nil, fmt.Errorf("multiclient: unknown server %q: %w", serverName, ErrUnknownServer)
		}
		caps := c.capabilities[serverName]
		if caps == nil || caps.Prompts == nil || len(caps.Prompts.Prompts) == 0 {
			return nil, fmt.Errorf("multiclient: server %q has no prompts: %w", serverName, ErrServerHasNoPrompts)
		}
		if !hasPromptNamed(caps.Prompts.Prompts, name) {
			return nil, fmt.Errorf("multiclient: prompt %q not found in server %q: %w", name, serverName, ErrPromptNotInServer)
		}
		return session, nil
	}

	owner, ok := c.promptToServer[name]
	if !ok {
		return nil, fmt.Errorf("multiclient: unknown prompt %q: %w", name, ErrUnknownPrompt)
	}
	return c.sessions[owner], nil
}

// SetLoggingLevel validates the level against the MCP severity set, folds the
// aliases ("notice" to "warning", "alert"/"emergency" to "critical"),
// forwards it to every connected server, and moves the local log level along
// with it.
func (c *Client) SetLoggingLevel(ctx context.Context, level string) error {
	folded, err := normalizeLoggingLevel(level)
	if err != nil {
		return err
	}

	c.mu.RLock()
	sessions := make([]*serverSession, 0, len(c.connectOrder))
	for _, name := range c.connectOrder {
		sessions = append(sessions, c.sessions[name])
	}
	c.mu.RUnlock()

	if c.opts.LogLevel != nil {
		c.opts.LogLevel.Set(slogLevel(string(folded)))
	}

	var errs []error
	for _, session := range sessions {
		if err := session.setLoggingLevel(ctx, folded); err != nil {
			if isMethodUnavailableError(err, "logging/setLevel") {
				continue
			}
			errs = append(errs, fmt.Errorf("multiclient: set logging level on server %q: %w", session.name, err))
		}
	}
	return errors.Join(errs...)
}

func hasToolNamed(tools []*mcp.Tool, name string) bool {
	for _, tool := range tools {
		if tool != nil && tool.Name == name {
			return true
		}
	}
	return false
}

func hasPromptNamed(prompts []*mcp.Prompt, name string) bool {
	for _, prompt := range prompts {
		if prompt != nil && prompt.Name == name {
			return true
		}
	}
	return false
}

func routingErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownServer):
		return "unknown_server"
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrUnknownPrompt):
		return "unknown_prompt"
	case errors.Is(err, ErrServerHasNoTools):
		return "server_has_no_tools"
	case errors.Is(err, ErrServerHasNoPrompts):
		return "server_has_no_prompts"
	case errors.Is(err, ErrToolNotInServer):
		return "tool_not_in_server"
	case errors.Is(err, ErrPromptNotInServer):
		return "prompt_not_in_server"
	case errors.Is(err, ErrAmbiguousResource):
		return "ambiguous_resource"
	default:
		return "other"
	}
}
