package node

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"sync"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/provision/internal/meta"
	hcloudplatform "github.com/imamik/provision/internal/platform/hcloud"
	"github.com/imamik/provision/internal/platform/ssh"
)

// fakeProvider is an in-memory cloud.
type fakeProvider struct {
	mu sync.Mutex

	locations []*hcloud.Location
	types     []*hcloud.ServerType
	images    []*hcloud.Image
	servers   []*hcloud.Server

	rootPassword string
	// pendingPolls is how many GetServerByID calls see the server still
	// starting.
	pendingPolls int
	// vanish makes GetServerByID report the created server as missing.
	vanish    bool
	createErr error
	listErr   error
	deleteErr error

	created []hcloudplatform.ServerCreateOpts
	deleted []int64
	polls   int
	nextID  int64
}

func newFakeProvider() *fakeProvider {
	noble, jammy := "ubuntu-24.04", "ubuntu-22.04"
	return &fakeProvider{
		locations: []*hcloud.Location{{ID: 1, Name: "fsn1"}, {ID: 2, Name: "nbg1"}},
		types: []*hcloud.ServerType{
			{ID: 22, Name: "cx22", Architecture: hcloud.ArchitectureX86},
			{ID: 45, Name: "cax11", Architecture: hcloud.ArchitectureARM},
		},
		images: []*hcloud.Image{
			{ID: 10, Name: jammy, Architecture: hcloud.ArchitectureX86},
			{ID: 11, Name: noble, Architecture: hcloud.ArchitectureX86},
			{ID: 12, Name: noble, Architecture: hcloud.ArchitectureARM},
		},
		rootPassword: "root-pass",
		nextID:       100,
	}
}

func (f *fakeProvider) addServer(id int64, name string, status hcloud.ServerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, &hcloud.Server{ID: id, Name: name, Status: status})
}

func (f *fakeProvider) CreateServer(_ context.Context, opts hcloudplatform.ServerCreateOpts) (*hcloudplatform.CreatedServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, opts)
	f.nextID++
	s := &hcloud.Server{ID: f.nextID, Name: opts.Name, Status: hcloud.ServerStatusInitializing, Image: opts.Image}
	f.servers = append(f.servers, s)
	pw := f.rootPassword
	if len(opts.SSHKeys) > 0 {
		pw = ""
	}
	return &hcloudplatform.CreatedServer{Server: s, RootPassword: pw}, nil
}

func (f *fakeProvider) GetServerByID(_ context.Context, id int64) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.vanish {
		return nil, nil
	}
	for _, s := range f.servers {
		if s.ID != id {
			continue
		}
		if f.polls > f.pendingPolls {
			s.Status = hcloud.ServerStatusRunning
			s.PublicNet.IPv4.IP = net.ParseIP("203.0.113.7")
		}
		return s, nil
	}
	return nil, nil
}

func (f *fakeProvider) ListServers(context.Context) ([]*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*hcloud.Server(nil), f.servers...), nil
}

func (f *fakeProvider) DeleteServer(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeProvider) ListLocations(context.Context) ([]*hcloud.Location, error) {
	return f.locations, nil
}

func (f *fakeProvider) ListServerTypes(context.Context) ([]*hcloud.ServerType, error) {
	return f.types, nil
}

func (f *fakeProvider) ListImages(context.Context) ([]*hcloud.Image, error) {
	return f.images, nil
}

var errTransport = errors.New("connection reset by peer")

type put struct {
	target   string
	content  string
	mode     fs.FileMode
	appendTo bool
}

// fakeSession records what a deployment does on the node.
type fakeSession struct {
	conn *fakeConnector
}

func (s *fakeSession) Run(_ context.Context, command string) (ssh.Result, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, command)
	return ssh.Result{
		ExitStatus: c.exitStatus[command],
		Stdout:     "out " + command,
		Stderr:     "",
	}, nil
}

func (s *fakeSession) Put(_ context.Context, target string, content []byte, mode fs.FileMode, appendTo bool) error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failingSessions > 0 {
		return errTransport
	}
	c.puts = append(c.puts, put{target: target, content: string(content), mode: mode, appendTo: appendTo})
	return nil
}

func (s *fakeSession) Close() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failingSessions > 0 {
		c.failingSessions--
	}
	c.closed++
	return nil
}

// fakeConnector hands out fakeSessions.
type fakeConnector struct {
	mu sync.Mutex

	connectErr      error
	failingSessions int
	exitStatus      map[string]int

	targets []Target
	puts    []put
	runs    []string
	closed  int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{exitStatus: map[string]int{}}
}

func (c *fakeConnector) Connect(_ context.Context, target Target) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, target)
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return &fakeSession{conn: c}, nil
}

// fakeStore is an in-memory destroyability store.
type fakeStore struct {
	records map[string]meta.Record
	saveErr error
	readErr error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]meta.Record{}}
}

func (s *fakeStore) Save(_ context.Context, node string, rec meta.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[node] = rec
	return nil
}

func (s *fakeStore) Destroyable(_ context.Context, node string) (bool, error) {
	if s.readErr != nil {
		return false, errors.Join(meta.ErrMetadataUnavailable, s.readErr)
	}
	rec, ok := s.records[node]
	if !ok {
		return false, meta.ErrMetadataUnavailable
	}
	return rec.Destroyable, nil
}

func (s *fakeStore) Delete(_ context.Context, node string) error {
	s.deleted = append(s.deleted, node)
	delete(s.records, node)
	return nil
}

// recordingObserver remembers every notification.
type recordingObserver struct {
	deploys   []error
	scripts   map[string]int
	destroyed map[string]bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{scripts: map[string]int{}, destroyed: map[string]bool{}}
}

func (o *recordingObserver) DeployFinished(_ time.Duration, err error) {
	o.deploys = append(o.deploys, err)
}

func (o *recordingObserver) ScriptFinished(script string, exitStatus int) {
	o.scripts[script] = exitStatus
}

func (o *recordingObserver) DestroyFinished(node string, destroyed bool, _ error) {
	o.destroyed[node] = destroyed
}
