package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerCreateOpts holds all parameters for creating a server.
type ServerCreateOpts struct {
	Name       string
	Image      *hcloud.Image
	ServerType *hcloud.ServerType
	Location   *hcloud.Location
	// SSHKeys are names or IDs of keys registered with the provider.
	SSHKeys  []string
	Labels   map[string]string
	UserData string
}

// CreatedServer is a freshly created server. RootPassword is only set when
// no SSH keys were attached.
type CreatedServer struct {
	Server       *hcloud.Server
	RootPassword string
}

// ServerManager defines the server operations used by the node driver.
type ServerManager interface {
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*CreatedServer, error)
	// GetServerByID returns the server, or nil if it does not exist.
	GetServerByID(ctx context.Context, id int64) (*hcloud.Server, error)
	ListServers(ctx context.Context) ([]*hcloud.Server, error)
	// DeleteServer deletes the server and waits for the deletion to finish.
	// Deleting a server that no longer exists succeeds.
	DeleteServer(ctx context.Context, id int64) error
}

// CatalogReader defines lookups of what can be provisioned.
type CatalogReader interface {
	ListLocations(ctx context.Context) ([]*hcloud.Location, error)
	ListServerTypes(ctx context.Context) ([]*hcloud.ServerType, error)
	ListImages(ctx context.Context) ([]*hcloud.Image, error)
}

// Provider combines everything the node driver needs from the cloud.
type Provider interface {
	ServerManager
	CatalogReader
}
