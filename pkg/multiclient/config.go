package multiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ServerConfig describes how to launch one stdio MCP server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPServersConfig is the full connection plan: a named set of server launch
// configurations. Instances parsed from JSON remember the document order of
// the "mcpServers" keys, because connection order (and therefore merge order
// and last-registration-wins) follows it. Instances built in code fall back
// to sorted name order.
type MCPServersConfig struct {
	Servers map[string]ServerConfig

	order []string
}

type configDocument struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// ServerNames returns the server names in connection order.
func (c *MCPServersConfig) ServerNames() []string {
	if c == nil {
		return nil
	}
	if len(c.order) == len(c.Servers) {
		return append([]string(nil), c.order...)
	}
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON parses the {"mcpServers": {...}} document, walking the token
// stream so the key order of the mcpServers object is preserved.
func (c *MCPServersConfig) UnmarshalJSON(data []byte) error {
	var doc configDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("multiclient: parse config: %w", err)
	}
	if doc.MCPServers == nil {
		return fmt.Errorf("multiclient: config missing required field %q: %w", "mcpServers", ErrInvalidConfig)
	}

	order, err := objectKeyOrder(data, "mcpServers")
	if err != nil {
		return err
	}

	servers := make(map[string]ServerConfig, len(doc.MCPServers))
	for name, raw := range doc.MCPServers {
		var sc ServerConfig
		if err := json.Unmarshal(raw, &sc); err != nil {
			return fmt.Errorf("multiclient: server %q: %w", name, err)
		}
		servers[name] = sc
	}
	c.Servers = servers
	c.order = order
	return nil
}

// MarshalJSON writes the wire form back out, honoring the remembered order.
func (c *MCPServersConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"mcpServers":{`)
	for i, name := range c.ServerNames() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Servers[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Validate checks the schema eagerly. Server reachability is deliberately not
// checked here; a missing executable only surfaces when Connect runs.
func (c *MCPServersConfig) Validate() error {
	if c == nil || c.Servers == nil {
		return fmt.Errorf("multiclient: config missing required field %q: %w", "mcpServers", ErrInvalidConfig)
	}
	for _, name := range c.ServerNames() {
		sc := c.Servers[name]
		if name == "" {
			return fmt.Errorf("multiclient: server name must not be empty: %w", ErrInvalidConfig)
		}
		if sc.Command == "" {
			return fmt.Errorf("multiclient: server %q: missing required field %q: %w", name, "command", ErrInvalidConfig)
		}
	}
	return nil
}

// ParseConfig decodes and validates a JSON configuration document.
func ParseConfig(data []byte) (*MCPServersConfig, error) {
	var cfg MCPServersConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*MCPServersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("multiclient: read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("multiclient: config %s: %w", path, err)
	}
	return cfg, nil
}

// objectKeyOrder returns the key order of the top-level object named field.
func objectKeyOrder(data []byte, field string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	// Opening brace of the document.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("multiclient: parse config: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("multiclient: parse config: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("multiclient: parse config: unexpected token %v: %w", tok, ErrInvalidConfig)
		}
		if key != field {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("multiclient: parse config: %w", err)
			}
			continue
		}
		return nestedKeyOrder(dec)
	}
	return nil, nil
}

func nestedKeyOrder(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("multiclient: parse config: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("multiclient: field %q must be an object: %w", "mcpServers", ErrInvalidConfig)
	}
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("multiclient: parse config: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("multiclient: parse config: unexpected token %v: %w", tok, ErrInvalidConfig)
		}
		order = append(order, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, fmt.Errorf("multiclient: parse config: %w", err)
		}
	}
	return order, nil
}
