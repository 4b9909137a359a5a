package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Provision         time.Duration // Timeout for a new server to become running with an address
	PollInterval      time.Duration // Interval between server status polls
	SSHConnect        time.Duration // Window for establishing the SSH session
	SSHRetryDelay     time.Duration // Delay between SSH connection attempts
	SSHDialTimeout    time.Duration // Timeout of a single SSH dial
	SSHMaxAttempts    int           // Maximum SSH connection attempts within the window
	StepBatchTries    int           // Attempts at running the deployment steps as a whole
	StepBatchDelay    time.Duration // Delay between step batch attempts
	Delete            time.Duration // Timeout for server delete operations
	RetryMaxAttempts  int           // Maximum number of retry attempts for provider calls
	RetryInitialDelay time.Duration // Initial delay between provider call retries
	RetryMaxDelay     time.Duration // Upper bound of the provider call retry delay
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PROVISION_TIMEOUT_PROVISION (default: 10m)
//   - PROVISION_TIMEOUT_POLL_INTERVAL (default: 3s)
//   - PROVISION_TIMEOUT_SSH_CONNECT (default: 5m)
//   - PROVISION_TIMEOUT_SSH_RETRY_DELAY (default: 3s)
//   - PROVISION_TIMEOUT_SSH_DIAL (default: 10s)
//   - PROVISION_SSH_MAX_ATTEMPTS (default: 100)
//   - PROVISION_STEP_BATCH_TRIES (default: 3)
//   - PROVISION_TIMEOUT_STEP_BATCH_DELAY (default: 1s)
//   - PROVISION_TIMEOUT_DELETE (default: 5m)
//   - PROVISION_RETRY_MAX_ATTEMPTS (default: 5)
//   - PROVISION_RETRY_INITIAL_DELAY (default: 1s)
//   - PROVISION_RETRY_MAX_DELAY (default: 30s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Provision:         parseDuration("PROVISION_TIMEOUT_PROVISION", 10*time.Minute),
		PollInterval:      parseDuration("PROVISION_TIMEOUT_POLL_INTERVAL", 3*time.Second),
		SSHConnect:        parseDuration("PROVISION_TIMEOUT_SSH_CONNECT", 5*time.Minute),
		SSHRetryDelay:     parseDuration("PROVISION_TIMEOUT_SSH_RETRY_DELAY", 3*time.Second),
		SSHDialTimeout:    parseDuration("PROVISION_TIMEOUT_SSH_DIAL", 10*time.Second),
		SSHMaxAttempts:    parseInt("PROVISION_SSH_MAX_ATTEMPTS", 100),
		StepBatchTries:    parseInt("PROVISION_STEP_BATCH_TRIES", 3),
		StepBatchDelay:    parseDuration("PROVISION_TIMEOUT_STEP_BATCH_DELAY", 1*time.Second),
		Delete:            parseDuration("PROVISION_TIMEOUT_DELETE", 5*time.Minute),
		RetryMaxAttempts:  parseInt("PROVISION_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("PROVISION_RETRY_INITIAL_DELAY", 1*time.Second),
		RetryMaxDelay:     parseDuration("PROVISION_RETRY_MAX_DELAY", 30*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return defaultVal
	}

	return i
}

// TestTimeouts returns short timeouts for use in tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		Provision:         2 * time.Second,
		PollInterval:      10 * time.Millisecond,
		SSHConnect:        time.Second,
		SSHRetryDelay:     10 * time.Millisecond,
		SSHDialTimeout:    time.Second,
		SSHMaxAttempts:    5,
		StepBatchTries:    3,
		StepBatchDelay:    time.Millisecond,
		Delete:            5 * time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}
}
