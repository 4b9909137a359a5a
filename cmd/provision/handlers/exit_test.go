package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"

	"github.com/imamik/provision/internal/bundle"
	"github.com/imamik/provision/internal/image"
	"github.com/imamik/provision/internal/node"
	"github.com/imamik/provision/internal/platform/ssh"
	"github.com/imamik/provision/internal/template"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", &ExitError{Code: 3, Err: errors.New("tests failed")}, 3},
		{"wrapped exit error", fmt.Errorf("destroy: %w", &ExitError{Code: ExitNotDestroyed}), 1},
		{"provision timeout", fmt.Errorf("node x: %w", node.ErrProvisionTimeout), ExitDeploymentTimeout},
		{"step batch", &node.StepBatchError{Node: "x", Tries: 3, Err: errors.New("broken pipe")}, ExitDeploymentError},
		{"ssh exhausted", fmt.Errorf("%w: 1.2.3.4:22: refused", ssh.ErrConnectRetryExhausted), ExitDeploymentError},
		{"unknown bundle", &bundle.UnknownBundleError{Name: "web"}, ExitDeploymentError},
		{"unsupported dialect", fmt.Errorf("render: %w", &template.UnsupportedDialectError{Dialect: "jinja"}), ExitDeploymentError},
		{"no image", &image.NoMatchingImageError{Desired: "plan9"}, ExitDeploymentError},
		{"service error", hcloud.Error{Code: hcloud.ErrorCodeServiceError, Message: "boom"}, ExitServiceUnavailable},
		{"maintenance", fmt.Errorf("list: %w", hcloud.Error{Code: hcloud.ErrorCodeMaintenance}), ExitServiceUnavailable},
		{"json error", hcloud.Error{Code: hcloud.ErrorCodeJSONError}, ExitMalformedResponse},
		{"syntax error", fmt.Errorf("decode: %w", &json.SyntaxError{Offset: 1}), ExitMalformedResponse},
		{"anything else", errors.New("disk full"), ExitUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestScriptExitCode(t *testing.T) {
	assert.Equal(t, 0, scriptExitCode(0))
	assert.Equal(t, 7, scriptExitCode(7))
	assert.Equal(t, 255, scriptExitCode(255))
	assert.Equal(t, 255, scriptExitCode(1000))
}

func TestExitError(t *testing.T) {
	inner := errors.New("not all tests passed")
	err := &ExitError{Code: 3, Err: inner}

	assert.Equal(t, "not all tests passed", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "exit status 4", (&ExitError{Code: 4}).Error())
}
