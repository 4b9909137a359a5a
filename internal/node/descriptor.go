package node

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	hcloudplatform "github.com/imamik/provision/internal/platform/hcloud"
)

// ScriptResult captures one executed script.
type ScriptResult struct {
	Path       string
	Script     string
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Descriptor describes a node. The JSON form is the node description file
// written after a deploy.
type Descriptor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	State     string   `json:"state"`
	PublicIP  []string `json:"public_ip"`
	PrivateIP []string `json:"private_ip"`
	ImageID   string   `json:"image_id"`
	ImageName string   `json:"image_name"`

	Scripts []ScriptResult `json:"-"`
}

func describe(s *hcloud.Server) Descriptor {
	d := Descriptor{
		ID:        strconv.FormatInt(s.ID, 10),
		Name:      s.Name,
		State:     string(s.Status),
		PublicIP:  []string{},
		PrivateIP: []string{},
	}
	if ip := hcloudplatform.ServerIPv4(s); ip != "" {
		d.PublicIP = append(d.PublicIP, ip)
	}
	if ip := hcloudplatform.ServerIPv6(s); ip != "" {
		d.PublicIP = append(d.PublicIP, ip)
	}
	d.PrivateIP = append(d.PrivateIP, hcloudplatform.ServerPrivateIPs(s)...)
	if s.Image != nil {
		d.ImageID = strconv.FormatInt(s.Image.ID, 10)
		d.ImageName = hcloudplatform.ImageName(s.Image)
	}
	return d
}

// PrimaryIP returns the first public address, or "" if there is none.
func (d Descriptor) PrimaryIP() string {
	if len(d.PublicIP) == 0 {
		return ""
	}
	return d.PublicIP[0]
}

// WriteJSON writes the description to path.
func (d Descriptor) WriteJSON(path string) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode node description: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write node description %s: %w", path, err)
	}
	return nil
}

// SumExitStatus adds up the exit statuses of every executed script.
func (d Descriptor) SumExitStatus() int {
	sum := 0
	for _, s := range d.Scripts {
		sum += s.ExitStatus
	}
	return sum
}

func (d Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<Node: id=%s, name=%s, state=%s, public_ips=%v, private_ips=%v>",
		d.ID, d.Name, d.State, d.PublicIP, d.PrivateIP)
	for _, s := range d.Scripts {
		fmt.Fprintf(&b, "\n*%s: %d\n%s\n%s\n%s", s.Path, s.ExitStatus, s.Script, s.Stdout, s.Stderr)
	}
	return b.String()
}
