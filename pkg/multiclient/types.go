package multiclient

import (
	"maps"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// metaServerName is the metadata key stamped on every merged descriptor to
// record which server advertised it.
const metaServerName = "serverName"

// ServerCapabilities is the immutable snapshot of what one server advertised
// at connect time. A nil list means the server does not support that
// capability at all; an empty list means it supports it but advertised
// nothing. Snapshots are replaced wholesale on reconnect, never mutated.
type ServerCapabilities struct {
	Name              string
	Tools             *mcp.ListToolsResult
	Resources         *mcp.ListResourcesResult
	ResourceTemplates *mcp.ListResourceTemplatesResult
	Prompts           *mcp.ListPromptsResult
}

func attributeTool(tool *mcp.Tool, serverName string) *mcp.Tool {
	if tool == nil {
		return nil
	}
	clone := *tool
	clone.Meta = withServerName(tool.Meta, serverName)
	return &clone
}

func attributePrompt(prompt *mcp.Prompt, serverName string) *mcp.Prompt {
	if prompt == nil {
		return nil
	}
	clone := *prompt
	clone.Meta = withServerName(prompt.Meta, serverName)
	return &clone
}

func attributeResource(resource *mcp.Resource, serverName string, useNamespace bool) *mcp.Resource {
	if resource == nil {
		return nil
	}
	clone := *resource
	clone.Meta = withServerName(resource.Meta, serverName)
	if useNamespace {
		clone.URI = namespaceURI(serverName, resource.URI)
	}
	return &clone
}

func attributeResourceTemplate(tpl *mcp.ResourceTemplate, serverName string, useNamespace bool) *mcp.ResourceTemplate {
	if tpl == nil {
		return nil
	}
	clone := *tpl
	clone.Meta = withServerName(tpl.Meta, serverName)
	if useNamespace {
		clone.URITemplate = namespaceURI(serverName, tpl.URITemplate)
	}
	return &clone
}

func withServerName(base map[string]any, serverName string) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, 1)
	}
	out[metaServerName] = serverName
	return out
}
