// Package multiclient aggregates any number of Model Context Protocol (MCP)
// servers behind a single client surface. It connects to every server named
// in one configuration, merges their tools, resources, resource templates,
// and prompts into a combined catalog, and routes each call to the server
// that owns the capability, so callers work against one client regardless of
// how many processes actually serve the requests.
//
// # Core entry points
//
//   - Client is the routing core. Construct it with New (configuration file
//     path) or NewFromConfig (in-memory configuration), call Connect to dial
//     every server, and Close to tear the sessions down again.
//   - SyncClient wraps a Client in a call-and-return surface with per-call
//     timeouts and no contexts, for embedding in code that cannot be
//     structured around connection lifecycles. Construct it with
//     NewSyncClient; it connects on construction and disconnects on
//     Shutdown.
//   - MCPServersConfig declares the servers, using the common "mcpServers"
//     JSON layout (command, args, env per server). Connection order follows
//     the order of keys in the file.
//
// Tool and prompt names are routed through flat maps where the last server
// to register a name wins; collisions are logged, never fatal. Resource URIs
// are instead namespaced per server: ListResources can return URIs of the
// form "serverName:originalURI", which ReadResource splits to find the
// owning server. Merged listings keep every entry, including duplicates, and
// stamp each with the originating server name in its metadata.
package multiclient
