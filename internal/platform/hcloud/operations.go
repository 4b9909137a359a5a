package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/provision/internal/util/retry"
)

// DeleteOperation encapsulates deletion logic for any hcloud resource.
// It provides consistent retry, timeout, and error handling across resource types.
//
// Usage example:
//
//	func (c *RealClient) DeleteSSHKey(ctx context.Context, name string) error {
//	    return (&DeleteOperation[*hcloud.SSHKey]{
//	        Name:         name,
//	        ResourceType: "ssh key",
//	        Get:          c.client.SSHKey.Get,
//	        Delete:       c.client.SSHKey.Delete,
//	    }).Execute(ctx, c)
//	}
type DeleteOperation[T any] struct {
	// Name is the name or ID passed to Get.
	Name         string
	ResourceType string

	// Get retrieves the resource by name or ID
	Get func(ctx context.Context, idOrName string) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete operation with retry logic and timeout handling.
// The operation is idempotent - it succeeds if the resource doesn't exist.
// Locked resources and transient API failures are retried with exponential backoff.
func (op *DeleteOperation[T]) Execute(ctx context.Context, client *RealClient) error {
	ctx, cancel := context.WithTimeout(ctx, client.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.Name)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}

		// Check if resource is nil (already deleted)
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		_, err = op.Delete(ctx, resource)
		if err != nil {
			// Gone between Get and Delete.
			if IsNotFound(err) {
				return nil
			}
			if isResourceLocked(err) || isTransient(err) {
				return err // Retryable
			}
			return retry.Fatal(err)
		}
		return nil
	}, client.retryOptions()...)
}

// waitForActions waits for one or more actions to complete.
func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, actions...)
}
