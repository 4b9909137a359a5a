package handlers

import (
	"errors"
	"fmt"

	"github.com/imamik/provision/internal/bundle"
	"github.com/imamik/provision/internal/image"
	"github.com/imamik/provision/internal/node"
	hcloudplatform "github.com/imamik/provision/internal/platform/hcloud"
	"github.com/imamik/provision/internal/platform/ssh"
	"github.com/imamik/provision/internal/template"
)

// Process exit codes for failures that are not decided by a command itself.
const (
	ExitUnexpected         = 11
	ExitMalformedResponse  = 12
	ExitServiceUnavailable = 13
	ExitDeploymentError    = 14
	ExitDeploymentTimeout  = 15
)

// Exit codes of the destroy command.
const (
	ExitNotDestroyed        = 1
	ExitTestResultsUnusable = 2
	ExitTestsFailed         = 3
)

// maxExitStatus is the largest status a process can report.
const maxExitStatus = 255

// ExitError carries the process exit code decided by a handler.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		unknownBundle *bundle.UnknownBundleError
		dialect       *template.UnsupportedDialectError
		noImage       *image.NoMatchingImageError
		batch         *node.StepBatchError
	)
	switch {
	case errors.Is(err, node.ErrProvisionTimeout):
		return ExitDeploymentTimeout
	case errors.As(err, &batch),
		errors.Is(err, ssh.ErrConnectRetryExhausted),
		errors.As(err, &unknownBundle),
		errors.As(err, &dialect),
		errors.As(err, &noImage):
		return ExitDeploymentError
	case hcloudplatform.IsServiceUnavailable(err):
		return ExitServiceUnavailable
	case hcloudplatform.IsMalformedResponse(err):
		return ExitMalformedResponse
	default:
		return ExitUnexpected
	}
}

// scriptExitCode caps the summed script exit statuses of a deployment.
func scriptExitCode(sum int) int {
	return min(sum, maxExitStatus)
}
