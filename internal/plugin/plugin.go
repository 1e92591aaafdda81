// Package plugin runs embedders out of process over go-plugin's gRPC transport.
package plugin

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	hcplugin "github.com/hashicorp/go-plugin"
)

// Handshake is used to handshake between host and plugin.
var Handshake = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MNEMO_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "mnemo-embedder",
}

// EmbedderPluginName is the name the embedder is dispensed under.
const EmbedderPluginName = "embedder"

// Embedder is the capability a plugin provides.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// PluginMap is the map of plugins the host can dispense.
var PluginMap = map[string]hcplugin.Plugin{
	EmbedderPluginName: &EmbedderGRPCPlugin{},
}

// Serve blocks serving impl to a host process. It is called from the
// plugin binary's main.
func Serve(impl Embedder) {
	hcplugin.Serve(&hcplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hcplugin.Plugin{
			EmbedderPluginName: &EmbedderGRPCPlugin{Impl: impl},
		},
		GRPCServer: hcplugin.DefaultGRPCServer,
	})
}

// Client is an embedder living in a child process.
type Client struct {
	Embedder
	client *hcplugin.Client
}

// Launch starts the plugin binary at path and connects to its embedder.
func Launch(path string, args ...string) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("plugin path is required")
	}

	c := hcplugin.NewClient(&hcplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path, args...), // #nosec G204
		AllowedProtocols: []hcplugin.Protocol{hcplugin.ProtocolGRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin",
			Output: os.Stderr,
			Level:  hclog.Warn,
		}),
	})

	rpcClient, err := c.Client()
	if err != nil {
		c.Kill()
		return nil, fmt.Errorf("start plugin %s: %w", path, err)
	}
	raw, err := rpcClient.Dispense(EmbedderPluginName)
	if err != nil {
		c.Kill()
		return nil, fmt.Errorf("dispense embedder: %w", err)
	}
	e, ok := raw.(Embedder)
	if !ok {
		c.Kill()
		return nil, fmt.Errorf("plugin %s does not provide an embedder (got %T)", path, raw)
	}

	return &Client{Embedder: e, client: c}, nil
}

// Close stops the plugin process.
func (c *Client) Close() error {
	c.client.Kill()
	return nil
}
