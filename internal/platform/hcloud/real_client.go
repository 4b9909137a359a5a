package hcloud

import (
	"net/http"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/provision/internal/config"
)

// Application identifies this tool in the API user agent.
const Application = "provision"

// RealClient implements Provider using the Hetzner Cloud API.
type RealClient struct {
	client     *hcloud.Client
	timeouts   *config.Timeouts
	httpClient *http.Client
	registerer prometheus.Registerer
	endpoint   string
	version    string
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RealClient) {
		c.httpClient = hc
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
// It takes precedence over every other transport option.
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *RealClient) {
		c.endpoint = endpoint
	}
}

// WithInstrumentation registers API request metrics with reg.
func WithInstrumentation(reg prometheus.Registerer) ClientOption {
	return func(c *RealClient) {
		c.registerer = reg
	}
}

// WithVersion sets the application version reported in the user agent.
func WithVersion(v string) ClientOption {
	return func(c *RealClient) {
		c.version = v
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		timeouts:   config.LoadTimeouts(),
		httpClient: http.DefaultClient,
		version:    "dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		hopts := []hcloud.ClientOption{
			hcloud.WithToken(token),
			hcloud.WithApplication(Application, c.version),
			hcloud.WithHTTPClient(c.httpClient),
		}
		if c.endpoint != "" {
			hopts = append(hopts, hcloud.WithEndpoint(c.endpoint))
		}
		if c.registerer != nil {
			hopts = append(hopts, hcloud.WithInstrumentation(c.registerer))
		}
		c.client = hcloud.NewClient(hopts...)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client for advanced operations.
func (c *RealClient) HCloudClient() *hcloud.Client {
	return c.client
}
