package multiclient

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverSession is the client's live handle to one backend server. The
// underlying mcp.ClientSession has already completed its initialize handshake
// by the time a serverSession exists.
type serverSession struct {
	name    string
	session *mcp.ClientSession
}

// snapshot fetches the server's full advertised capability set, draining
// protocol pagination so the stored lists are always complete. A capability
// the server does not implement at all is recorded as nil rather than
// failing the connect.
func (s *serverSession) snapshot(ctx context.Context) (*ServerCapabilities, error) {
	caps := &ServerCapabilities{Name: s.name}

	tools, err := s.listAllTools(ctx)
	if err != nil {
		if !isMethodUnavailableError(err, "tools/list") {
			return nil, err
		}
	} else {
		caps.Tools = tools
	}

	resources, err := s.listAllResources(ctx)
	if err != nil {
		if !isMethodUnavailableError(err, "resources/list") {
			return nil, err
		}
	} else {
		caps.Resources = resources
	}

	templates, err := s.listAllResourceTemplates(ctx)
	if err != nil {
		if !isMethodUnavailableError(err, "resources/templates/list") {
			return nil, err
		}
	} else {
		caps.ResourceTemplates = templates
	}

	prompts, err := s.listAllPrompts(ctx)
	if err != nil {
		if !isMethodUnavailableError(err, "prompts/list") {
			return nil, err
		}
	} else {
		caps.Prompts = prompts
	}

	return caps, nil
}

func (s *serverSession) listAllTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	out := &mcp.ListToolsResult{Tools: []*mcp.Tool{}}
	cursor := ""
	for {
		res, err := s.session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out.Tools = append(out.Tools, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (s *serverSession) listAllResources(ctx context.Context) (*mcp.ListResourcesResult, error) {
	out := &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}
	cursor := ""
	for {
		res, err := s.session.ListResources(ctx, &mcp.ListResourcesParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out.Resources = append(out.Resources, res.Resources...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (s *serverSession) listAllResourceTemplates(ctx context.Context) (*mcp.ListResourceTemplatesResult, error) {
	out := &mcp.ListResourceTemplatesResult{ResourceTemplates: []*mcp.ResourceTemplate{}}
	cursor := ""
	for {
		res, err := s.session.ListResourceTemplates(ctx, &mcp.ListResourceTemplatesParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out.ResourceTemplates = append(out.ResourceTemplates, res.ResourceTemplates...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (s *serverSession) listAllPrompts(ctx context.Context) (*mcp.ListPromptsResult, error) {
	out := &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}
	cursor := ""
	for {
		res, err := s.session.ListPrompts(ctx, &mcp.ListPromptsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out.Prompts = append(out.Prompts, res.Prompts...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (s *serverSession) callTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	return s.session.CallTool(ctx, params)
}

func (s *serverSession) readResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return s.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
}

func (s *serverSession) getPrompt(ctx context.Context, name string, arguments map[string]string) (*mcp.GetPromptResult, error) {
	return s.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: arguments})
}

func (s *serverSession) setLoggingLevel(ctx context.Context, level mcp.LoggingLevel) error {
	return s.session.SetLoggingLevel(ctx, &mcp.SetLoggingLevelParams{Level: level})
}

func (s *serverSession) close() error {
	return s.session.Close()
}

// isMethodUnavailableError reports whether err looks like the server simply
// not implementing the given method, so capability discovery can record an
// absent capability instead of aborting the connect.
func isMethodUnavailableError(err error, method string) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "not implemented") ||
		strings.Contains(lower, "unimplemented") {
		return true
	}
	if strings.Contains(lower, "unsupported") || strings.Contains(lower, "does not support") {
		// Generic capability complaints only count when they mention the
		// method we asked for.
		for _, part := range strings.Split(strings.ToLower(method), "/") {
			if part != "" && strings.Contains(lower, part) {
				return true
			}
		}
	}
	return false
}
