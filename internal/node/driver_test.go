package node

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/provision/internal/config"
	"github.com/imamik/provision/internal/image"
	"github.com/imamik/provision/internal/meta"
	"github.com/imamik/provision/internal/plan"
	"github.com/imamik/provision/internal/util/labels"
	"github.com/imamik/provision/internal/util/logging"
)

var _ = Describe("Driver", func() {
	var (
		ctx       context.Context
		provider  *fakeProvider
		connector *fakeConnector
		observer  *recordingObserver
		files     map[string][]byte
		p         *plan.Plan
	)

	newDriver := func(opts ...Option) *Driver {
		base := []Option{
			WithConnector(connector),
			WithTimeouts(config.TestTimeouts()),
			WithObserver(observer),
			WithCredentials(SSHCredentials{User: "root", PrivateKey: []byte("private-key")}),
			WithLocalFiles(func(path string) ([]byte, fs.FileMode, error) {
				data, ok := files[path]
				if !ok {
					return nil, 0, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
				}
				return data, 0o640, nil
			}),
		}
		return NewDriver(provider, logging.New(GinkgoWriter, logging.Debug), append(base, opts...)...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		provider = newFakeProvider()
		connector = newFakeConnector()
		observer = newRecordingObserver()
		files = map[string][]byte{"/cfg/files/app.conf": []byte("a=1\n")}
		p = &plan.Plan{
			NodeName: "deploy-test-abc123",
			Steps: []plan.Step{
				{Kind: plan.InstallKeys, Content: "ssh-ed25519 AAAA me\n"},
				{Kind: plan.UploadFile, Source: "/cfg/files/app.conf", Target: "/etc/app.conf"},
				{Kind: plan.RunScript, Target: "/root/deploy/a.sh", Content: "#!/bin/sh\necho a\n"},
				{Kind: plan.RunScript, Target: "/root/deploy/b.sh", Content: "#!/bin/sh\nexit 2\n"},
			},
		}
	})

	Describe("Deploy", func() {
		It("creates the server and runs every step in order", func() {
			connector.exitStatus["'/root/deploy/b.sh'"] = 2

			desc, err := newDriver().Deploy(ctx, p, DeployOptions{LocationIndex: 1, SizeIndex: 0, ImageName: "ubuntu"})
			Expect(err).NotTo(HaveOccurred())

			Expect(provider.created).To(HaveLen(1))
			opts := provider.created[0]
			Expect(opts.Name).To(Equal("deploy-test-abc123"))
			Expect(opts.Location.Name).To(Equal("nbg1"))
			Expect(opts.ServerType.Name).To(Equal("cx22"))
			Expect(opts.Image.ID).To(Equal(int64(11)))
			Expect(opts.Labels).To(HaveKeyWithValue(labels.KeyManagedBy, labels.ManagedByProvision))
			Expect(opts.Labels).To(HaveKeyWithValue(labels.KeyNode, "deploy-test-abc123"))

			Expect(connector.puts).To(HaveLen(4))
			Expect(connector.puts[0]).To(Equal(put{target: ".ssh/authorized_keys", content: "ssh-ed25519 AAAA me\n", mode: 0o600, appendTo: true}))
			Expect(connector.puts[1]).To(Equal(put{target: "/etc/app.conf", content: "a=1\n", mode: 0o640}))
			Expect(connector.puts[2].target).To(Equal("/root/deploy/a.sh"))
			Expect(connector.puts[2].mode).To(Equal(fs.FileMode(0o700)))
			Expect(connector.runs).To(Equal([]string{"'/root/deploy/a.sh'", "'/root/deploy/b.sh'"}))

			Expect(desc.Name).To(Equal("deploy-test-abc123"))
			Expect(desc.State).To(Equal("running"))
			Expect(desc.PrimaryIP()).To(Equal("203.0.113.7"))
			Expect(desc.ImageID).To(Equal("11"))
			Expect(desc.ImageName).To(Equal("ubuntu-24.04"))
			Expect(desc.Scripts).To(HaveLen(2))
			Expect(desc.SumExitStatus()).To(Equal(2))

			Expect(observer.deploys).To(Equal([]error{nil}))
			Expect(observer.scripts).To(Equal(map[string]int{"/root/deploy/a.sh": 0, "/root/deploy/b.sh": 2}))
		})

		It("quotes script paths when running them", func() {
			p.Steps = []plan.Step{
				{Kind: plan.RunScript, Target: "/root/deploy dir/it's.sh", Content: "#!/bin/sh\n"},
			}

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).NotTo(HaveOccurred())

			Expect(connector.puts[len(connector.puts)-1].target).To(Equal("/root/deploy dir/it's.sh"))
			Expect(connector.runs).To(Equal([]string{`'/root/deploy dir/it'\''s.sh'`}))
		})

		It("logs in with the root password when no provider keys are attached", func() {
			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu-24.04"})
			Expect(err).NotTo(HaveOccurred())

			Expect(connector.targets).To(HaveLen(1))
			Expect(connector.targets[0]).To(Equal(Target{Host: "203.0.113.7", User: "root", Password: "root-pass"}))
		})

		It("logs in with the private key when provider keys are attached", func() {
			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu-24.04", SSHKeyNames: []string{"ci"}})
			Expect(err).NotTo(HaveOccurred())

			Expect(provider.created[0].SSHKeys).To(Equal([]string{"ci"}))
			Expect(connector.targets[0].PrivateKey).To(Equal([]byte("private-key")))
			Expect(connector.targets[0].Password).To(BeEmpty())
		})

		It("picks images matching the server type architecture", func() {
			_, err := newDriver().Deploy(ctx, p, DeployOptions{SizeIndex: 1, ImageName: "ubuntu-24.04"})
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.created[0].Image.ID).To(Equal(int64(12)))
		})

		DescribeTable("rejects out of range catalogue indexes",
			func(opts DeployOptions, msg string) {
				_, err := newDriver().Deploy(ctx, p, opts)
				Expect(err).To(MatchError(ContainSubstring(msg)))
				Expect(provider.created).To(BeEmpty())
			},
			Entry("location too high", DeployOptions{LocationIndex: 2, ImageName: "ubuntu"}, "location index 2 out of range"),
			Entry("negative location", DeployOptions{LocationIndex: -1, ImageName: "ubuntu"}, "location index -1 out of range"),
			Entry("size too high", DeployOptions{SizeIndex: 9, ImageName: "ubuntu"}, "size index 9 out of range"),
		)

		It("fails without creating anything when no image matches", func() {
			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "centos"})

			var noMatch *image.NoMatchingImageError
			Expect(errors.As(err, &noMatch)).To(BeTrue())
			Expect(provider.created).To(BeEmpty())
			Expect(observer.deploys).To(HaveLen(1))
			Expect(observer.deploys[0]).To(HaveOccurred())
		})

		It("waits for the server to come up", func() {
			provider.pendingPolls = 3

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.polls).To(Equal(4))
		})

		It("times out when the server never runs", func() {
			provider.pendingPolls = 1 << 30
			timeouts := config.TestTimeouts()
			timeouts.Provision = 50 * timeouts.PollInterval

			_, err := newDriver(WithTimeouts(timeouts)).Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).To(MatchError(ErrProvisionTimeout))
			Expect(connector.targets).To(BeEmpty())
		})

		It("fails when the server disappears while waiting", func() {
			provider.vanish = true

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).To(MatchError(ContainSubstring("disappeared")))
		})

		It("propagates connect failures without retrying the batch", func() {
			connector.connectErr = errors.New("ssh connect retries exhausted")

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).To(MatchError(ContainSubstring("ssh connect retries exhausted")))
			Expect(connector.targets).To(HaveLen(1))
		})

		It("repeats the whole batch after a transport failure", func() {
			connector.failingSessions = 2

			desc, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).NotTo(HaveOccurred())
			Expect(connector.targets).To(HaveLen(3))
			Expect(desc.Scripts).To(HaveLen(2))
		})

		It("gives up after the configured number of batch tries", func() {
			connector.failingSessions = 10

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})

			var batchErr *StepBatchError
			Expect(errors.As(err, &batchErr)).To(BeTrue())
			Expect(batchErr.Tries).To(Equal(3))
			Expect(err).To(MatchError(errTransport))
			Expect(connector.targets).To(HaveLen(3))
		})

		It("does not retry when a local file is missing", func() {
			delete(files, "/cfg/files/app.conf")

			_, err := newDriver().Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
			Expect(err).To(MatchError(fs.ErrNotExist))
			Expect(connector.targets).To(HaveLen(1))
		})

		Context("with a destroyability store", func() {
			var store *fakeStore

			BeforeEach(func() {
				store = newFakeStore()
			})

			It("records prefixed names as destroyable", func() {
				_, err := newDriver(WithStore(store)).Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
				Expect(err).NotTo(HaveOccurred())
				Expect(store.records).To(HaveKey("deploy-test-abc123"))
				Expect(store.records["deploy-test-abc123"].Destroyable).To(BeTrue())
				Expect(store.records["deploy-test-abc123"].Image).To(Equal("ubuntu-24.04"))
			})

			It("records other names as kept unless flagged", func() {
				p.NodeName = "prod-db"
				_, err := newDriver(WithStore(store)).Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
				Expect(err).NotTo(HaveOccurred())
				Expect(store.records["prod-db"].Destroyable).To(BeFalse())

				p.NodeName = "prod-web"
				_, err = newDriver(WithStore(store)).Deploy(ctx, p, DeployOptions{ImageName: "ubuntu", Destroyable: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(store.records["prod-web"].Destroyable).To(BeTrue())
				Expect(provider.created[1].Labels).To(HaveKeyWithValue(labels.KeyDestroyable, "true"))
			})

			It("still deploys when the record cannot be saved", func() {
				store.saveErr = errors.New("bucket unreachable")
				_, err := newDriver(WithStore(store)).Deploy(ctx, p, DeployOptions{ImageName: "ubuntu"})
				Expect(err).NotTo(HaveOccurred())
				Expect(store.records).To(BeEmpty())
			})
		})
	})

	Describe("Destroy", func() {
		It("destroys every live node with the name", func() {
			provider.addServer(1, "deploy-test-abc123", hcloud.ServerStatusRunning)
			provider.addServer(2, "deploy-test-abc123", hcloud.ServerStatusOff)
			provider.addServer(3, "deploy-test-abc123", hcloud.ServerStatusDeleting)
			provider.addServer(4, "deploy-test-other", hcloud.ServerStatusRunning)

			ok, err := newDriver().Destroy(ctx, "deploy-test-abc123")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(provider.deleted).To(Equal([]int64{1, 2}))
			Expect(observer.destroyed).To(HaveKeyWithValue("deploy-test-abc123", true))
		})

		It("reports false when nothing matches", func() {
			ok, err := newDriver().Destroy(ctx, "deploy-test-nothing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(provider.deleted).To(BeEmpty())
		})

		DescribeTable("refuses names without a destroyable prefix and makes no provider call",
			func(name string) {
				provider.addServer(1, name, hcloud.ServerStatusRunning)

				ok, err := newDriver().Destroy(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
				Expect(provider.deleted).To(BeEmpty())
			},
			Entry("foreign name", "prod-db"),
			Entry("bare prefix", "deploy-test-"),
			Entry("prefix in the middle", "x-deploy-test-abc"),
		)

		It("honours configured prefixes", func() {
			provider.addServer(1, "ci-node1", hcloud.ServerStatusRunning)

			ok, err := newDriver(WithDestroyablePrefixes([]string{"ci-"})).Destroy(ctx, "ci-node1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("reports provider failures", func() {
			provider.addServer(1, "deploy-test-abc123", hcloud.ServerStatusRunning)
			provider.deleteErr = errors.New("service unavailable")

			ok, err := newDriver().Destroy(ctx, "deploy-test-abc123")
			Expect(err).To(MatchError(ContainSubstring("service unavailable")))
			Expect(ok).To(BeFalse())
		})

		Context("with a destroyability store", func() {
			var store *fakeStore

			BeforeEach(func() {
				store = newFakeStore()
				provider.addServer(1, "prod-db", hcloud.ServerStatusRunning)
			})

			It("destroys nodes whose record allows it and removes the record", func() {
				store.records["prod-db"] = meta.Record{Destroyable: true}

				ok, err := newDriver(WithStore(store)).Destroy(ctx, "prod-db")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(provider.deleted).To(Equal([]int64{1}))
				Expect(store.deleted).To(Equal([]string{"prod-db"}))
			})

			It("keeps nodes whose record forbids it", func() {
				store.records["prod-db"] = meta.Record{Destroyable: false}

				ok, err := newDriver(WithStore(store)).Destroy(ctx, "prod-db")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
				Expect(provider.deleted).To(BeEmpty())
			})

			It("fails closed when the record is missing or unreadable", func() {
				provider.addServer(2, "deploy-test-abc123", hcloud.ServerStatusRunning)

				ok, err := newDriver(WithStore(store)).Destroy(ctx, "deploy-test-abc123")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				store.records["prod-db"] = meta.Record{Destroyable: true}
				store.readErr = errors.New("timeout")
				ok, err = newDriver(WithStore(store)).Destroy(ctx, "prod-db")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
				Expect(provider.deleted).To(BeEmpty())
			})
		})
	})

	Describe("List", func() {
		It("returns every node that is not being deleted", func() {
			provider.addServer(1, "a", hcloud.ServerStatusRunning)
			provider.addServer(2, "b", hcloud.ServerStatusDeleting)
			provider.addServer(3, "c", hcloud.ServerStatusOff)

			nodes, err := newDriver().List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(2))
			Expect(nodes[0].Name).To(Equal("a"))
			Expect(nodes[1].Name).To(Equal("c"))
			Expect(nodes[1].State).To(Equal("off"))
		})

		It("propagates provider errors", func() {
			provider.listErr = errors.New("unavailable")
			_, err := newDriver().List(ctx)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Descriptor", func() {
	desc := Descriptor{
		ID:        "7",
		Name:      "deploy-test-abc123",
		State:     "running",
		PublicIP:  []string{"203.0.113.7"},
		PrivateIP: []string{},
		ImageID:   "11",
		ImageName: "ubuntu-24.04",
		Scripts: []ScriptResult{
			{Path: "/root/deploy/a.sh", Script: "echo a", ExitStatus: 1, Stdout: "a", Stderr: ""},
			{Path: "/root/deploy/b.sh", Script: "echo b", ExitStatus: 4, Stdout: "b", Stderr: "warn"},
		},
	}

	It("writes the flat node description", func() {
		path := filepath.Join(GinkgoT().TempDir(), "node.json")
		Expect(desc.WriteJSON(path)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		var got map[string]any
		Expect(json.Unmarshal(data, &got)).To(Succeed())
		Expect(got).To(HaveLen(7))
		Expect(got).To(HaveKeyWithValue("id", "7"))
		Expect(got).To(HaveKeyWithValue("public_ip", []any{"203.0.113.7"}))
		Expect(got).To(HaveKeyWithValue("private_ip", []any{}))
		Expect(got).To(HaveKeyWithValue("image_name", "ubuntu-24.04"))
	})

	It("sums script exit statuses", func() {
		Expect(desc.SumExitStatus()).To(Equal(5))
		Expect(Descriptor{}.SumExitStatus()).To(Equal(0))
	})

	It("shows each script with its status and output", func() {
		s := desc.String()
		Expect(s).To(HavePrefix("<Node: id=7, name=deploy-test-abc123, state=running"))
		Expect(s).To(ContainSubstring("\n*/root/deploy/a.sh: 1\necho a\na\n"))
		Expect(s).To(ContainSubstring("\n*/root/deploy/b.sh: 4\necho b\nb\nwarn"))
	})
})
