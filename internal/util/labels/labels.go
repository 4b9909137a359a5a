package labels

// Standard label keys for provisioned servers.
const (
	// KeyNode carries the node name.
	KeyNode = "provision.io/node"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "provision.io/managed-by"

	// KeyDestroyable is set when the node was deployed as destroyable.
	KeyDestroyable = "provision.io/destroyable"
)

// ManagedByProvision is the managed-by value for servers created by this tool.
const ManagedByProvision = "provision"

// LabelBuilder provides a fluent interface for building server labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the node name pre-set.
func NewLabelBuilder(node string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyNode:      node,
			KeyManagedBy: ManagedByProvision,
		},
	}
}

// WithDestroyable marks the server as destroyable when set is true.
func (lb *LabelBuilder) WithDestroyable(set bool) *LabelBuilder {
	if set {
		lb.labels[KeyDestroyable] = "true"
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorManaged returns a label selector matching every server this tool created.
func SelectorManaged() string {
	return KeyManagedBy + "=" + ManagedByProvision
}

// SelectorForNode returns a label selector for one node.
func SelectorForNode(node string) string {
	return KeyNode + "=" + node
}
