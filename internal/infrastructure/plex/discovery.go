package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// resource is one entry of the plex.tv resource directory.
type resource struct {
	Name             string `json:"name"`
	Provides         string `json:"provides"`
	ClientIdentifier string `json:"clientIdentifier"`
	Owned            bool   `json:"owned"`
	Connections      []struct {
		URI string `json:"uri"`
	} `json:"connections"`
}

// descriptor resolves and caches the target server identity. Auto-detection
// runs when no server identifier is configured.
func (c *Client) descriptor(ctx context.Context) (*serverDescriptor, error) {
	cfg := c.provider.GetPlexConfig(ctx)
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	identifier := cfg.ServerIdentifier
	if identifier == "" {
		detected, err := c.detectServer(ctx, cfg.Token, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		identifier = detected
	}

	cacheKey := cfg.Token + ":" + identifier
	c.mu.Lock()
	if cached, ok := c.serverCache[cacheKey]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	desc, err := c.resolveDescriptor(ctx, cfg.Token, identifier)
	if err != nil {
		return nil, err
	}
	if !desc.Owned {
		return nil, fmt.Errorf("%w: %s", ErrNotOwned, identifier)
	}

	c.mu.Lock()
	c.serverCache[cacheKey] = desc
	c.mu.Unlock()
	return desc, nil
}

// detectServer picks a machine identifier from the resource directory. A
// connection whose host matches the configured base URL wins; otherwise a
// single provides=server resource is accepted.
func (c *Client) detectServer(ctx context.Context, token, baseURL string) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, plexTVBaseURL+"/api/resources?includeHttps=1", token, nil)
	if err != nil {
		return "", err
	}
	if isAuthStatus(status) {
		return "", fmt.Errorf("%w: resources returned status %d", ErrRejected, status)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("plex resources returned status %d", status)
	}

	var resources []resource
	if err := json.Unmarshal(body, &resources); err != nil {
		return "", fmt.Errorf("failed to decode plex resources: %w", err)
	}

	var servers []resource
	for _, r := range resources {
		if strings.Contains(r.Provides, "server") {
			servers = append(servers, r)
		}
	}
	if len(servers) == 0 {
		return "", ErrNoSuchServer
	}

	if host := hostOf(baseURL); host != "" {
		for _, r := range servers {
			for _, conn := range r.Connections {
				if hostOf(conn.URI) == host {
					return r.ClientIdentifier, nil
				}
			}
		}
	}

	if len(servers) == 1 {
		return servers[0].ClientIdentifier, nil
	}

	names := make([]string, 0, len(servers))
	for _, r := range servers {
		names = append(names, fmt.Sprintf("%s (%s)", r.Name, r.ClientIdentifier))
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousServer, strings.Join(names, ", "))
}

// resolveDescriptor looks the machine identifier up in the legacy server
// directory to learn the numeric id the legacy invite endpoint needs.
func (c *Client) resolveDescriptor(ctx context.Context, token, identifier string) (*serverDescriptor, error) {
	body, status, err := c.do(ctx, http.MethodGet, plexTVBaseURL+"/api/servers", token, nil)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, fmt.Errorf("%w: servers returned status %d", ErrRejected, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("plex servers returned status %d", status)
	}

	var container struct {
		MediaContainer struct {
			Server []map[string]any `json:"Server"`
		} `json:"MediaContainer"`
	}
	if err := json.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("failed to decode plex servers: %w", err)
	}

	for _, server := range container.MediaContainer.Server {
		if asString(server["machineIdentifier"]) != identifier {
			continue
		}
		owned := true
		if raw, present := server["owned"]; present {
			owned = asBool(raw)
		}
		return &serverDescriptor{
			MachineIdentifier: identifier,
			LegacyServerID:    asString(server["id"]),
			Owned:             owned,
		}, nil
	}

	// Servers too new for the legacy directory still work through the v2
	// invite endpoint.
	return &serverDescriptor{MachineIdentifier: identifier, Owned: true}, nil
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
