package image

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockImage struct {
	id   int
	name string
}

func images(names ...string) []mockImage {
	out := make([]mockImage, len(names))
	for i, n := range names {
		out[i] = mockImage{id: i, name: n}
	}
	return out
}

func nameOf(m mockImage) string { return m.name }

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		desired string
		images  []mockImage
		want    string
	}{
		{
			name:    "highest number wins",
			desired: "default-image",
			images:  images("default-image0", "default-image1", "default-image10", "default-image9"),
			want:    "default-image10",
		},
		{
			name:    "exact match beats numbered",
			desired: "default-image",
			images:  images("default-image", "default-image1", "default-image10", "default-image9"),
			want:    "default-image",
		},
		{
			name:    "separators are ignored",
			desired: "default-image",
			images:  images("default-image_0", "default-image-11", "default-image_12", "default-image13"),
			want:    "default-image13",
		},
		{
			name:    "short names",
			desired: "img",
			images:  images("img0", "img1", "img10", "img9"),
			want:    "img10",
		},
		{
			name:    "first digit run decides",
			desired: "ubuntu",
			images:  images("ubuntu-22.04", "ubuntu-24.04", "ubuntu-20.04", "debian-13"),
			want:    "ubuntu-24.04",
		},
		{
			name:    "names without digits are ignored",
			desired: "rocky",
			images:  images("rocky-latest", "rocky-9", "rocky-8"),
			want:    "rocky-9",
		},
		{
			name:    "numbers beyond int64",
			desired: "snap",
			images:  images("snap-99999999999999999999", "snap-100000000000000000000"),
			want:    "snap-100000000000000000000",
		},
		{
			name:    "leading zeros compare by value",
			desired: "img",
			images:  images("img-010", "img-9"),
			want:    "img-010",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.desired, tt.images, nameOf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.name)
		})
	}
}

func TestResolve_LastExactMatchWins(t *testing.T) {
	got, err := Resolve("img", images("img", "img2", "img"), nameOf)

	require.NoError(t, err)
	assert.Equal(t, 2, got.id)
}

func TestResolve_TiesPickLastListed(t *testing.T) {
	got, err := Resolve("img", images("img-7", "img_7", "img-3"), nameOf)

	require.NoError(t, err)
	assert.Equal(t, 1, got.id)
}

func TestResolve_NoMatch(t *testing.T) {
	tests := []struct {
		name   string
		images []mockImage
	}{
		{"empty list", nil},
		{"no prefix match", images("debian-12", "fedora-40")},
		{"only undigited candidates", images("ubuntu-latest", "ubuntu-lts")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve("ubuntu", tt.images, nameOf)

			var noMatch *NoMatchingImageError
			require.True(t, errors.As(err, &noMatch), "expected NoMatchingImageError, got %v", err)
			assert.Equal(t, "ubuntu", noMatch.Desired)
		})
	}
}
