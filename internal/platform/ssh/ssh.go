package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/provision/internal/util/retry"
)

const (
	defaultPort           = 22
	defaultDialTimeout    = 10 * time.Second
	defaultConnectTimeout = 5 * time.Minute
	defaultRetryDelay     = 3 * time.Second
	defaultMaxAttempts    = 100

	loginDisabledBanner = "Please login as the user"
	probeCommand        = "pwd"
)

var (
	// ErrLoginDisabled means the server accepted the login but refused to
	// run commands for this user yet.
	ErrLoginDisabled = errors.New("login disabled for user")

	// ErrConnectRetryExhausted means no usable session could be opened
	// within the connect window.
	ErrConnectRetryExhausted = errors.New("ssh connect retries exhausted")
)

// Config holds SSH client configuration. One of PrivateKey or Password is
// required; the key is preferred when both are set.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte
	Password   string

	// DialTimeout bounds one TCP connect plus handshake.
	DialTimeout time.Duration
	// ConnectTimeout bounds all attempts of Connect together.
	ConnectTimeout time.Duration
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// MaxAttempts caps the number of attempts.
	MaxAttempts int

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Client opens sessions on one remote host.
type Client struct {
	config *Config
	auth   []ssh.AuthMethod
	log    logr.Logger
}

// NewClient validates cfg and parses the private key.
func NewClient(cfg *Config, log logr.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 && cfg.Password == "" {
		return nil, fmt.Errorf("config needs a private key or a password")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.ConnectTimeout == 0 {
		configCopy.ConnectTimeout = defaultConnectTimeout
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.MaxAttempts == 0 {
		configCopy.MaxAttempts = defaultMaxAttempts
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // nodes are created just before connecting
	}

	var auth []ssh.AuthMethod
	if len(configCopy.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if configCopy.Password != "" {
		auth = append(auth, ssh.Password(configCopy.Password))
	}

	return &Client{config: &configCopy, auth: auth, log: log}, nil
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Connect opens a session, retrying until the host accepts a login and runs
// a probe command. Errors wrap ErrConnectRetryExhausted.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	var session *Session
	err := retry.WithExponentialBackoff(ctx, func() error {
		s, err := c.dial(ctx)
		if err != nil {
			return err
		}
		if err := s.probe(ctx); err != nil {
			_ = s.Close()
			return err
		}
		session = s
		return nil
	},
		retry.WithMaxRetries(c.config.MaxAttempts-1),
		retry.WithFixedInterval(c.config.RetryDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			c.log.V(1).Info("ssh not ready, retrying", "host", c.addr(), "attempt", attempt, "error", err.Error())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectRetryExhausted, c.addr(), err)
	}
	c.log.V(1).Info("ssh session established", "host", c.addr(), "user", c.config.User)
	return session, nil
}

func (c *Client) dial(ctx context.Context) (*Session, error) {
	addr := c.addr()
	d := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	_ = conn.SetDeadline(time.Now().Add(c.config.DialTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            c.auth,
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &Session{client: ssh.NewClient(sshConn, chans, reqs), host: addr}, nil
}

// Result is the outcome of one remote command.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Session is an authenticated connection to one host. Each Run or Put
// opens its own channel on it.
type Session struct {
	client *ssh.Client
	host   string
}

// probe runs the probe command, bounded by ctx.
func (s *Session) probe(ctx context.Context) error {
	res, err := s.run(ctx, probeCommand, nil)
	if strings.Contains(res.Stdout, loginDisabledBanner) || strings.Contains(res.Stderr, loginDisabledBanner) {
		return ErrLoginDisabled
	}
	if err != nil {
		return err
	}
	if res.ExitStatus != 0 {
		return fmt.Errorf("probe on %s exited with status %d", s.host, res.ExitStatus)
	}
	return nil
}

// Run executes command. A non-zero exit status is reported in the result,
// not as an error. Errors mean the command could not be run at all.
func (s *Session) Run(ctx context.Context, command string) (Result, error) {
	return s.run(ctx, command, nil)
}

func (s *Session) run(ctx context.Context, command string, stdin []byte) (Result, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if stdin != nil {
		sess.Stdin = bytes.NewReader(stdin)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case err = <-done:
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("command failed on %s: %w", s.host, err)
	}
	return res, nil
}

// Put writes content to target on the remote host, creating parent
// directories and applying mode. With appendTo set, content is appended to
// an existing file instead of replacing it. Relative targets are resolved
// against the login directory.
func (s *Session) Put(ctx context.Context, target string, content []byte, mode fs.FileMode, appendTo bool) error {
	redirect := ">"
	if appendTo {
		redirect = ">>"
	}
	q := Quote(target)
	command := fmt.Sprintf("mkdir -p %s && cat %s %s && chmod %04o %s",
		Quote(path.Dir(target)), redirect, q, mode.Perm(), q)

	res, err := s.run(ctx, command, content)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", target, err)
	}
	if res.ExitStatus != 0 {
		return fmt.Errorf("failed to upload %s: exit status %d: %s", target, res.ExitStatus, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Close closes the connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Quote quotes s as a single POSIX shell word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
