package meta

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys of a record object.
const (
	KeyDestroyable  = "destroyable"
	KeyCreatedAt    = "created-at"
	KeyDeploymentID = "deployment-id"
	KeyImage        = "image"
)

const (
	valueTrue  = "True"
	valueFalse = "False"
)

// Record is the destroyability record of one node.
type Record struct {
	Destroyable  bool
	CreatedAt    time.Time
	DeploymentID string
	Image        string
}

// NewRecord returns a record stamped with the current time and a fresh
// deployment id.
func NewRecord(destroyable bool, image string) Record {
	return Record{
		Destroyable:  destroyable,
		CreatedAt:    time.Now().UTC(),
		DeploymentID: uuid.NewString(),
		Image:        image,
	}
}

// Metadata encodes r as object user metadata.
func (r Record) Metadata() map[string]string {
	m := map[string]string{
		KeyDestroyable: valueFalse,
	}
	if r.Destroyable {
		m[KeyDestroyable] = valueTrue
	}
	if !r.CreatedAt.IsZero() {
		m[KeyCreatedAt] = r.CreatedAt.Format(time.RFC3339)
	}
	if r.DeploymentID != "" {
		m[KeyDeploymentID] = r.DeploymentID
	}
	if r.Image != "" {
		m[KeyImage] = r.Image
	}
	return m
}

// destroyable reports whether metadata marks a node as destroyable. Only the
// exact value "True" does. Keys are matched case-insensitively since S3
// gateways differ in how they return them.
func destroyable(metadata map[string]string) bool {
	for k, v := range metadata {
		if strings.EqualFold(k, KeyDestroyable) {
			return v == valueTrue
		}
	}
	return false
}
