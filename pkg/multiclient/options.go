package multiclient

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
)

// TransportFactory builds the transport used to reach one configured server.
// The default factory spawns the configured command as a subprocess and talks
// MCP over its stdin/stdout; tests substitute in-memory transports.
type TransportFactory func(serverName string, cfg ServerConfig) (mcp.Transport, error)

// Options configure a Client instance.
type Options struct {
	// ClientName is the implementation name advertised during the MCP
	// handshake. Defaults to "mcp-multi-server".
	ClientName string
	// ClientVersion is the semantic version reported to servers.
	ClientVersion string
	// ConnectTimeout bounds each server's spawn + handshake + capability
	// snapshot during Connect. Defaults to 30s.
	ConnectTimeout time.Duration
	// Logger receives structured diagnostics, including capability
	// collision warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// LogLevel, when set, is moved by SetLoggingLevel so local log output
	// follows the level pushed to the servers.
	LogLevel *slog.LevelVar
	// Transport overrides how server transports are built.
	Transport TransportFactory
	// MetricsRegisterer, when set, registers Prometheus collectors for tool
	// calls, routing errors, and capability collisions.
	MetricsRegisterer prometheus.Registerer
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcp-multi-server"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport == nil {
		opts.Transport = stdioTransport
	}
	return opts
}

// stdioTransport spawns cfg.Command with cfg.Args, layering cfg.Env over the
// parent environment, and frames MCP over the child's stdin/stdout.
func stdioTransport(serverName string, cfg ServerConfig) (mcp.Transport, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

// forwardServerLogs bridges MCP logging notifications from a server into the
// client's slog logger.
func forwardServerLogs(logger *slog.Logger, serverName string) func(context.Context, *mcp.LoggingMessageRequest) {
	return func(_ context.Context, req *mcp.LoggingMessageRequest) {
		if req == nil || req.Params == nil {
			return
		}
		logger.Log(context.Background(), slogLevel(string(req.Params.Level)),
			"server log message",
			"server", serverName,
			"logger", req.Params.Logger,
			"data", req.Params.Data,
		)
	}
}
