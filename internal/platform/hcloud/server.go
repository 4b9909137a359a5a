package hcloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/provision/internal/util/retry"
)

// CreateServer creates a new server. It returns as soon as the API accepted
// the request; callers poll the server status until it is running.
func (c *RealClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*CreatedServer, error) {
	if opts.Image == nil || opts.ServerType == nil {
		return nil, errors.New("image and server type are required")
	}

	sshKeys, err := c.resolveSSHKeys(ctx, opts.SSHKeys)
	if err != nil {
		return nil, err
	}

	createOpts := hcloud.ServerCreateOpts{
		Name:       opts.Name,
		ServerType: opts.ServerType,
		Image:      opts.Image,
		Location:   opts.Location,
		SSHKeys:    sshKeys,
		Labels:     opts.Labels,
		UserData:   opts.UserData,
	}

	result, err := c.createServerWithRetry(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	return &CreatedServer{Server: result.Server, RootPassword: result.RootPassword}, nil
}

// createServerWithRetry creates a server with exponential backoff retry logic.
func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) || !isTransient(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, c.retryOptions()...)

	if err != nil {
		return result, fmt.Errorf("failed to create server: %w", err)
	}
	return result, nil
}

// GetServerByID returns the server with the given ID, or nil if not found.
func (c *RealClient) GetServerByID(ctx context.Context, id int64) (*hcloud.Server, error) {
	var server *hcloud.Server
	err := c.withRetry(ctx, func() error {
		s, _, err := c.client.Server.GetByID(ctx, id)
		server = s
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get server %d: %w", id, err)
	}
	return server, nil
}

// ListServers returns every server of the project.
func (c *RealClient) ListServers(ctx context.Context) ([]*hcloud.Server, error) {
	var servers []*hcloud.Server
	err := c.withRetry(ctx, func() error {
		s, err := c.client.Server.All(ctx)
		servers = s
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// DeleteServer deletes the server with the given ID.
func (c *RealClient) DeleteServer(ctx context.Context, id int64) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         strconv.FormatInt(id, 10),
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			result, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil || result == nil || result.Action == nil {
				return resp, err
			}
			return resp, waitForActions(ctx, c.client, result.Action)
		},
	}).Execute(ctx, c)
}

// resolveSSHKeys resolves SSH key names/IDs to SSH key objects.
func (c *RealClient) resolveSSHKeys(ctx context.Context, sshKeys []string) ([]*hcloud.SSHKey, error) {
	var sshKeyObjs []*hcloud.SSHKey
	for _, key := range sshKeys {
		keyObj, _, err := c.client.SSHKey.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", key, err)
		}
		if keyObj == nil {
			return nil, fmt.Errorf("ssh key not found: %s", key)
		}
		sshKeyObjs = append(sshKeyObjs, keyObj)
	}
	return sshKeyObjs, nil
}

// withRetry runs a read-only call, retrying transient API failures.
func (c *RealClient) withRetry(ctx context.Context, call func() error) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		err := call()
		if err != nil && !isTransient(err) {
			return retry.Fatal(err)
		}
		return err
	}, c.retryOptions()...)
}

// retryOptions bounds provider call retries by the configured timeouts.
func (c *RealClient) retryOptions() []retry.Option {
	opts := []retry.Option{
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
	}
	if c.timeouts.RetryMaxDelay > 0 {
		opts = append(opts, retry.WithMaxDelay(c.timeouts.RetryMaxDelay))
	}
	return opts
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}

// ServerIPv6 returns the first address of the server's public IPv6 network.
func ServerIPv6(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv6.IP != nil {
		return s.PublicNet.IPv6.IP.String() + "1"
	}
	return ""
}

// ServerPrivateIPs returns the addresses of the server in private networks.
func ServerPrivateIPs(s *hcloud.Server) []string {
	if s == nil {
		return nil
	}
	var ips []string
	for _, pn := range s.PrivateNet {
		if pn.IP != nil {
			ips = append(ips, pn.IP.String())
		}
	}
	return ips
}
