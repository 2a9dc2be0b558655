// Package backend opens a session with the NL2SQL service.
//
// Design decisions:
//   - All calls go through one api.Client, keeping the rest of the
//     application unaware of tunnels and base URLs.
//   - SSH tunnel integration is handled transparently: if SSH is enabled,
//     we first establish the tunnel, then point the client at the local
//     endpoint.
//   - A session is only handed out after /health answers, so the console
//     never opens against a dead address.
package backend

import (
	"context"
	"fmt"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/ssh"
)

// Conn wraps the API client and optional SSH tunnel.
type Conn struct {
	Client *api.Client
	Tunnel *ssh.Tunnel
	Health *api.Health
	// URL is the address the user configured, not the tunnel endpoint.
	URL string
}

// Connect builds a client for cfg, optionally through an SSH tunnel, and
// checks that the backend is up.
func Connect(ctx context.Context, cfg config.Config, opts ...api.Option) (*Conn, error) {
	c := &Conn{URL: cfg.APIURL}
	baseURL := cfg.APIURL

	if cfg.SSH.Enabled {
		remote, err := ssh.RemoteAddr(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		tunnel, err := ssh.NewTunnel(cfg.SSH, remote)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localAddr, err := tunnel.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel start: %w", err)
		}
		c.Tunnel = tunnel

		baseURL, err = ssh.ForwardURL(cfg.APIURL, localAddr)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Client = api.New(baseURL, cfg.Timeout, opts...)

	health, err := c.Client.Health(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("backend %s: %w", cfg.APIURL, err)
	}
	c.Health = health
	applog.Event("connect", "connected to %s (status=%s tables=%d models=%d)",
		cfg.APIURL, health.Status, health.TablesLoaded, health.ModelsLoaded)
	return c, nil
}

// Close shuts down the SSH tunnel, if any.
func (c *Conn) Close() {
	if c.Tunnel != nil {
		c.Tunnel.Stop()
		c.Tunnel = nil
	}
}
