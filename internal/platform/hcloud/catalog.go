package hcloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ListLocations returns all locations ordered by ID, so an index into the
// list is stable between calls.
func (c *RealClient) ListLocations(ctx context.Context) ([]*hcloud.Location, error) {
	var locations []*hcloud.Location
	err := c.withRetry(ctx, func() error {
		l, err := c.client.Location.All(ctx)
		locations = l
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	sort.SliceStable(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations, nil
}

// ListServerTypes returns all server types ordered by ID.
func (c *RealClient) ListServerTypes(ctx context.Context) ([]*hcloud.ServerType, error) {
	var types []*hcloud.ServerType
	err := c.withRetry(ctx, func() error {
		t, err := c.client.ServerType.All(ctx)
		types = t
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list server types: %w", err)
	}
	sort.SliceStable(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

// ListImages returns all available system images and snapshots, in the
// order the API returns them.
func (c *RealClient) ListImages(ctx context.Context) ([]*hcloud.Image, error) {
	var images []*hcloud.Image
	err := c.withRetry(ctx, func() error {
		i, err := c.client.Image.AllWithOpts(ctx, hcloud.ImageListOpts{
			Type:   []hcloud.ImageType{hcloud.ImageTypeSystem, hcloud.ImageTypeSnapshot, hcloud.ImageTypeApp},
			Status: []hcloud.ImageStatus{hcloud.ImageStatusAvailable},
		})
		images = i
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// ImageName returns the name used to match an image. Snapshots carry no
// name, so their description is used instead.
func ImageName(img *hcloud.Image) string {
	if img == nil {
		return ""
	}
	if img.Name != "" {
		return img.Name
	}
	return img.Description
}

// ImagesFor returns the images that can boot the given server type.
func ImagesFor(images []*hcloud.Image, st *hcloud.ServerType) []*hcloud.Image {
	if st == nil || st.Architecture == "" {
		return images
	}
	var out []*hcloud.Image
	for _, img := range images {
		if img.Architecture == "" || img.Architecture == st.Architecture {
			out = append(out, img)
		}
	}
	return out
}
