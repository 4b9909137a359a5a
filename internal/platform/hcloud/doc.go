// Package hcloud wraps the Hetzner Cloud API with the operations the node
// lifecycle driver needs, adding retry logic, timeout management and error
// classification.
//
// # Architecture
//
//   - client.go: interfaces consumed by the driver
//   - real_client.go: client construction and functional options
//   - server.go: server create, get, list and delete
//   - catalog.go: locations, server types and images
//   - operations.go: generic idempotent delete with retry
//   - errors.go: error classification for retry logic and exit codes
//
// # Retry and Timeout Configuration
//
// Retry parameters and the delete timeout come from [config.Timeouts]:
//
//   - PROVISION_TIMEOUT_DELETE: server deletion timeout (default: 5m)
//   - PROVISION_RETRY_MAX_ATTEMPTS: maximum retry attempts (default: 5)
//   - PROVISION_RETRY_INITIAL_DELAY: initial retry delay (default: 1s)
//   - PROVISION_RETRY_MAX_DELAY: upper bound of the retry delay (default: 30s)
//
// Calls that fail with rate limiting or a temporary service outage are
// retried with exponential backoff; every other API error is returned at once.
//
// # Metrics
//
// [WithInstrumentation] registers the hcloud-go request metrics with a
// Prometheus registerer so they can be exported alongside run metrics.
package hcloud
