package node

import (
	"context"
	"io/fs"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/config"
	"github.com/imamik/provision/internal/platform/ssh"
)

// Target is where and how to log in to a node.
type Target struct {
	Host       string
	User       string
	PrivateKey []byte
	Password   string
}

// Session runs commands and uploads files on a node.
type Session interface {
	Run(ctx context.Context, command string) (ssh.Result, error)
	Put(ctx context.Context, target string, content []byte, mode fs.FileMode, appendTo bool) error
	Close() error
}

// Connector opens sessions to nodes.
type Connector interface {
	Connect(ctx context.Context, target Target) (Session, error)
}

// SSHConnector connects over SSH with the configured retry window.
type SSHConnector struct {
	timeouts *config.Timeouts
	log      logr.Logger
}

// NewSSHConnector returns a connector using timeouts for its retry window.
func NewSSHConnector(timeouts *config.Timeouts, log logr.Logger) *SSHConnector {
	return &SSHConnector{timeouts: timeouts, log: log}
}

// Connect implements Connector.
func (c *SSHConnector) Connect(ctx context.Context, target Target) (Session, error) {
	client, err := ssh.NewClient(&ssh.Config{
		Host:           target.Host,
		User:           target.User,
		PrivateKey:     target.PrivateKey,
		Password:       target.Password,
		DialTimeout:    c.timeouts.SSHDialTimeout,
		ConnectTimeout: c.timeouts.SSHConnect,
		RetryDelay:     c.timeouts.SSHRetryDelay,
		MaxAttempts:    c.timeouts.SSHMaxAttempts,
	}, c.log)
	if err != nil {
		return nil, err
	}
	return client.Connect(ctx)
}
