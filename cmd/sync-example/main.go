package main

import (
	"fmt"
	"os"
	"time"

	"github.com/apisani1/mcp-multi-server-go/pkg/multiclient"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	configPath := "servers.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	client, err := multiclient.NewSyncClient(multiclient.SyncOptions{
		ConfigPath: configPath,
	})
	if err != nil {
		fmt.Printf("startup error: %v\n", err)
		os.Exit(1)
	}
	defer client.Shutdown()

	for _, tool := range client.ListTools().Tools {
		fmt.Printf("Tool: %s\n", tool.Name)
	}

	res := client.CallTool("get_weather", map[string]any{"location": "Lisbon"}, "", 10*time.Second)
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			fmt.Println(text.Text)
		}
	}
	if res.IsError {
		fmt.Println("tool call failed")
	}
}
