// Package mcp holds the configuration surface for Model Context Protocol
// servers the Tool Host can list alongside built-in and plugin-declared
// tools. Connecting to and invoking an MCP server is out of scope here;
// only the trust/discovery contract (server identity, transport, whether
// it should auto-start) is modeled.
package mcp

import (
	"fmt"
	"strings"
	"time"
)

// TransportType specifies how an MCP server is reached.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

// ServerConfig describes one configured MCP server.
type ServerConfig struct {
	ID        string        `yaml:"id" json:"id"`
	Name      string        `yaml:"name" json:"name"`
	Transport TransportType `yaml:"transport" json:"transport"`

	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`
	WorkDir string            `yaml:"workdir" json:"workdir,omitempty"`

	URL     string            `yaml:"url" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	Timeout   time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	AutoStart bool          `yaml:"auto_start" json:"auto_start,omitempty"`
}

// Validate checks the server configuration is well-formed for its transport.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("server ID is required")
	}
	switch c.Transport {
	case TransportStdio:
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("stdio config for %s: command is required", c.ID)
		}
	case TransportHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("http config for %s: url is required", c.ID)
		}
	default:
		return fmt.Errorf("server %s: unsupported transport %q", c.ID, c.Transport)
	}
	return nil
}

// Config is the top-level MCP configuration block.
type Config struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Servers []*ServerConfig `yaml:"servers" json:"servers"`
}

// Validate checks every configured server.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, server := range c.Servers {
		if server == nil {
			continue
		}
		if err := server.Validate(); err != nil {
			return err
		}
		if _, dup := seen[server.ID]; dup {
			return fmt.Errorf("duplicate MCP server id %q", server.ID)
		}
		seen[server.ID] = struct{}{}
	}
	return nil
}
