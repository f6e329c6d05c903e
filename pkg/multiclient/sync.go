package multiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SyncOptions configures a SyncClient. Exactly one of ConfigPath and Config
// must be set.
type SyncOptions struct {
	// ConfigPath points at a JSON configuration file.
	ConfigPath string

	// Config supplies an already-built configuration.
	Config *MCPServersConfig

	// Client configures the underlying Client.
	Client Options

	// ReadyTimeout bounds how long NewSyncClient waits for the worker to
	// finish connecting. Defaults to 30 seconds.
	ReadyTimeout time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for the worker to
	// tear the sessions down. Defaults to 10 seconds.
	ShutdownTimeout time.Duration
}

const (
	defaultReadyTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// syncLifecycle holds the channels shared between a SyncClient and its
// worker goroutine. It is a separate allocation so the runtime cleanup
// attached to the SyncClient does not keep the SyncClient itself reachable.
type syncLifecycle struct {
	tasks chan func(context.Context)
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
}

func (lc *syncLifecycle) requestStop() {
	lc.stopOnce.Do(func() { close(lc.stop) })
}

// SyncClient wraps a Client in a call-and-return surface for code that does
// not want to manage connection lifecycle or pass contexts around. A single
// background worker owns the Client from Connect to Close and serializes
// every forwarded call; public methods hand the worker a task and wait with
// a per-call timeout.
//
// Timeouts are abandonment, not cancellation: a call that outlives its
// timeout keeps running on the worker and its eventual result is dropped.
//
// CallTool never returns an error. Routing failures, session errors, and
// timeouts all come back as an error-flagged CallToolResult, so tool
// failures stay data rather than control flow.
type SyncClient struct {
	client *Client
	logger *slog.Logger
	lc     *syncLifecycle

	shutdownOnce    sync.Once
	shutdownTimeout time.Duration

	mu       sync.Mutex
	shutdown bool
}

// NewSyncClient starts the worker, connects to every configured server, and
// returns once the connections are up. The worker keeps running until
// Shutdown; if the process never calls Shutdown, a runtime cleanup tears the
// sessions down when the SyncClient is collected.
func NewSyncClient(opts SyncOptions) (*SyncClient, error) {
	if (opts.ConfigPath == "") == (opts.Config == nil) {
		return nil, fmt.Errorf("multiclient: exactly one of ConfigPath and Config must be set: %w", ErrInvalidConfig)
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	var client *Client
	if opts.Config != nil {
		built, err := NewFromConfig(opts.Config, &opts.Client)
		if err != nil {
			return nil, err
		}
		client = built
	} else {
		client = New(opts.ConfigPath, &opts.Client)
	}

	lc := &syncLifecycle{
		tasks: make(chan func(context.Context)),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	sc := &SyncClient{
		client:          client,
		logger:          client.logger,
		lc:              lc,
		shutdownTimeout: shutdownTimeout,
	}

	ready := make(chan error, 1)
	go runSyncWorker(client, lc, ready, shutdownTimeout)

	select {
	case err := <-ready:
		if err != nil {
			lc.requestStop()
			return nil, err
		}
	case <-time.After(readyTimeout):
		lc.requestStop()
		return nil, fmt.Errorf("multiclient: timed out after %s waiting for servers to connect", readyTimeout)
	}

	runtime.AddCleanup(sc, func(lc *syncLifecycle) { lc.requestStop() }, lc)
	return sc, nil
}

// runSyncWorker owns the Client lifecycle end to end, so Connect and Close
// happen on the same goroutine the forwarded calls run on.
func runSyncWorker(client *Client, lc *syncLifecycle, ready chan<- error, shutdownTimeout time.Duration) {
	defer close(lc.done)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		ready <- err
		return
	}
	ready <- nil

	for {
		select {
		case task := <-lc.tasks:
			task(ctx)
		case <-lc.stop:
			closeCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			if err := client.Close(closeCtx); err != nil {
				client.logger.Warn("error closing sessions", "error", err)
			}
			cancel()
			return
		}
	}
}

// scheduleCall hands fn to the worker and waits up to timeout for its
// result. A timeout or a shut-down worker surfaces as an error naming the
// operation in what; fn may still complete on the worker afterward, with its
// result discarded.
func scheduleCall[T any](sc *SyncClient, what string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	sc.mu.Lock()
	down := sc.shutdown
	sc.mu.Unlock()
	if down {
		return zero, fmt.Errorf("multiclient: client is not initialized: %w", ErrNotConnected)
	}

	type outcome struct {
		value T
		err   error
	}
	result := make(chan outcome, 1)
	task := func(ctx context.Context) {
		value, err := fn(ctx)
		result <- outcome{value: value, err: err}
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case sc.lc.tasks <- task:
	case <-deadline:
		return zero, fmt.Errorf("multiclient: %s timed out after %s", what, timeout)
	case <-sc.lc.done:
		return zero, fmt.Errorf("multiclient: client is not initialized: %w", ErrNotConnected)
	}

	select {
	case out := <-result:
		return out.value, out.err
	case <-deadline:
		return zero, fmt.Errorf("multiclient: %s timed out after %s", what, timeout)
	case <-sc.lc.done:
		return zero, fmt.Errorf("multiclient: client is not initialized: %w", ErrNotConnected)
	}
}

// CallTool invokes a tool and always returns a result: any failure, from a
// bad route to a timeout, comes back as an error-flagged CallToolResult.
func (sc *SyncClient) CallTool(name string, arguments map[string]any, serverName string, timeout time.Duration) *mcp.CallToolResult {
	res, err := scheduleCall(sc, fmt.Sprintf("tool %q", name), timeout, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return sc.client.CallTool(ctx, name, arguments, serverName)
	})
	if err != nil {
		return errorToolResult(err)
	}
	return res
}

// CallToolWithParams is CallTool for callers that need to carry extra
// CallToolParams fields.
func (sc *SyncClient) CallToolWithParams(params *mcp.CallToolParams, serverName string, timeout time.Duration) *mcp.CallToolResult {
	toolName := ""
	if params != nil {
		toolName = params.Name
	}
	res, err := scheduleCall(sc, fmt.Sprintf("tool %q", toolName), timeout, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return sc.client.CallToolWithParams(ctx, params, serverName)
	})
	if err != nil {
		return errorToolResult(err)
	}
	return res
}

func errorToolResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// ReadResource reads a resource. Failures and timeouts are logged and an
// empty result returned.
func (sc *SyncClient) ReadResource(uri string, serverName string, timeout time.Duration) *mcp.ReadResourceResult {
	res, err := scheduleCall(sc, fmt.Sprintf("resource %q", uri), timeout, func(ctx context.Context) (*mcp.ReadResourceResult, error) {
		return sc.client.ReadResource(ctx, uri, serverName)
	})
	if err != nil {
		sc.logger.Error("read resource failed", "uri", uri, "error", err)
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{}}
	}
	return res
}

// GetPrompt fetches a prompt. Failures and timeouts are logged and an empty
// result returned.
func (sc *SyncClient) GetPrompt(name string, arguments map[string]string, serverName string, timeout time.Duration) *mcp.GetPromptResult {
	res, err := scheduleCall(sc, fmt.Sprintf("prompt %q", name), timeout, func(ctx context.Context) (*mcp.GetPromptResult, error) {
		return sc.client.GetPrompt(ctx, name, arguments, serverName)
	})
	if err != nil {
		sc.logger.Error("get prompt failed", "prompt", name, "error", err)
		return &mcp.GetPromptResult{Messages: []*mcp.PromptMessage{}}
	}
	return res
}

// ListTools returns the merged tool list from the cached snapshots. After
// Shutdown it returns an empty list.
func (sc *SyncClient) ListTools() *mcp.ListToolsResult {
	if sc.isShutdown() {
		return &mcp.ListToolsResult{Tools: []*mcp.Tool{}}
	}
	return sc.client.ListTools()
}

// ListResources returns the merged resource list from the cached snapshots.
func (sc *SyncClient) ListResources(useNamespace bool) *mcp.ListResourcesResult {
	if sc.isShutdown() {
		return &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}
	}
	return sc.client.ListResources(useNamespace)
}

// ListResourceTemplates returns the merged resource template list from the
// cached snapshots.
func (sc *SyncClient) ListResourceTemplates(useNamespace bool) *mcp.ListResourceTemplatesResult {
	if sc.isShutdown() {
		return &mcp.ListResourceTemplatesResult{ResourceTemplates: []*mcp.ResourceTemplate{}}
	}
	return sc.client.ListResourceTemplates(useNamespace)
}

// ListPrompts returns the merged prompt list from the cached snapshots.
func (sc *SyncClient) ListPrompts() *mcp.ListPromptsResult {
	if sc.isShutdown() {
		return &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}
	}
	return sc.client.ListPrompts()
}

// Capabilities returns the per-server capability snapshots. After Shutdown
// it returns an empty map.
func (sc *SyncClient) Capabilities() map[string]*ServerCapabilities {
	if sc.isShutdown() {
		return map[string]*ServerCapabilities{}
	}
	return sc.client.Capabilities()
}

// SetLoggingLevel validates the level locally, then forwards it to every
// server through the worker.
func (sc *SyncClient) SetLoggingLevel(level string, timeout time.Duration) error {
	if _, err := normalizeLoggingLevel(level); err != nil {
		return err
	}
	_, err := scheduleCall(sc, "set logging level", timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sc.client.SetLoggingLevel(ctx, level)
	})
	return err
}

// Shutdown stops the worker, which closes every session, and waits up to the
// configured shutdown timeout for the teardown to finish. It is idempotent
// and never panics; repeat calls return nil immediately.
func (sc *SyncClient) Shutdown() error {
	var err error
	sc.shutdownOnce.Do(func() {
		sc.mu.Lock()
		sc.shutdown = true
		sc.mu.Unlock()

		sc.lc.requestStop()
		select {
		case <-sc.lc.done:
		case <-time.After(sc.shutdownTimeout):
			err = errors.New("multiclient: timed out waiting for sessions to close")
		}
	})
	return err
}

func (sc *SyncClient) isShutdown() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shutdown
}
