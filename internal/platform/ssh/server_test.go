package ssh

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/provision/internal/util/keygen"
)

// execResult is what the test server answers to one exec request.
type execResult struct {
	stdout string
	stderr string
	status uint32
}

// testServer is a minimal in-process SSH server that hands every exec
// request to handler.
type testServer struct {
	t        *testing.T
	listener net.Listener
	config   *ssh.ServerConfig
	handler  func(command string, stdin []byte) execResult

	mu       sync.Mutex
	commands []string
	stdins   [][]byte
}

func newTestServer(t *testing.T, clientKey *keygen.KeyPair, password string, handler func(string, []byte) execResult) *testServer {
	t.Helper()

	hostKey, err := keygen.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	hostSigner, err := hostKey.Signer()
	if err != nil {
		t.Fatalf("failed to parse host key: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if password != "" && string(pass) == password {
				return nil, nil
			}
			return nil, errAuth
		},
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if clientKey == nil {
				return nil, errAuth
			}
			allowed, _, _, _, err := ssh.ParseAuthorizedKey(clientKey.PublicKey)
			if err == nil && string(allowed.Marshal()) == string(key.Marshal()) {
				return nil, nil
			}
			return nil, errAuth
		},
	}
	cfg.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ts := &testServer{t: t, listener: l, config: cfg, handler: handler}
	go ts.serve()
	t.Cleanup(func() { _ = l.Close() })
	return ts
}

var errAuth = errors.New("access denied")

func (ts *testServer) hostPort() (string, int) {
	host, port, _ := net.SplitHostPort(ts.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return host, p
}

func (ts *testServer) serve() {
	for {
		conn, err := ts.listener.Accept()
		if err != nil {
			return
		}
		go ts.handleConn(conn)
	}
}

func (ts *testServer) handleConn(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, ts.config)
	if err != nil {
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go ts.handleSession(ch, requests)
	}
}

func (ts *testServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		stdin, _ := io.ReadAll(ch)

		ts.mu.Lock()
		ts.commands = append(ts.commands, payload.Command)
		ts.stdins = append(ts.stdins, stdin)
		ts.mu.Unlock()

		res := ts.handler(payload.Command, stdin)
		_, _ = io.WriteString(ch, res.stdout)
		_, _ = io.WriteString(ch.Stderr(), res.stderr)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{res.status}))
		return
	}
}

func (ts *testServer) recorded() ([]string, [][]byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.commands...), append([][]byte(nil), ts.stdins...)
}
