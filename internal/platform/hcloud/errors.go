package hcloud

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action runs on them.
// These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,           // Item is locked (action running)
		hcloud.ErrorCodeConflict,         // Resource changed during request
		hcloud.ErrorCodeResourceLocked,   // Resource locked (contact support)
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
	)
}

// isTransient reports whether a call may succeed when repeated.
func isTransient(err error) bool {
	return IsRateLimited(err) || IsServiceUnavailable(err)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded)
}

// IsServiceUnavailable checks if the API is temporarily unable to serve
// requests. Responses without a JSON error body are recognized by their
// HTTP status.
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if isHCloudErrorCode(err,
		hcloud.ErrorCodeServiceError,
		hcloud.ErrorCode("unavailable"),
		hcloud.ErrorCodeMaintenance,
		hcloud.ErrorCode("timeout"),
	) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "status code 503") || strings.Contains(msg, "Service Unavailable")
}

// IsMalformedResponse checks if the API answered with something that could
// not be decoded.
func IsMalformedResponse(err error) bool {
	if isHCloudErrorCode(err, hcloud.ErrorCodeJSONError) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}
