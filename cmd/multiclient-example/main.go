package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/apisani1/mcp-multi-server-go/pkg/multiclient"
)

func main() {
	configPath := "servers.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := multiclient.New(configPath, &multiclient.Options{
		ClientName:     "multiclient-example",
		ConnectTimeout: 15 * time.Second,
		Logger:         logger,
		LogLevel:       level,
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		fmt.Printf("connect error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close(ctx)

	for name, caps := range client.Capabilities() {
		tools, prompts, resources := 0, 0, 0
		if caps.Tools != nil {
			tools = len(caps.Tools.Tools)
		}
		if caps.Prompts != nil {
			prompts = len(caps.Prompts.Prompts)
		}
		if caps.Resources != nil {
			resources = len(caps.Resources.Resources)
		}
		fmt.Printf("Server %s: %d tools, %d prompts, %d resources\n", name, tools, prompts, resources)
	}

	for _, tool := range client.ListTools().Tools {
		fmt.Printf("Tool: %s (from %v)\n", tool.Name, tool.Meta["serverName"])
	}
	for _, resource := range client.ListResources(true).Resources {
		fmt.Printf("Resource: %s (%s)\n", resource.Name, resource.URI)
	}
}
