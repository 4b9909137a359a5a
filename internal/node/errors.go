package node

import (
	"errors"
	"fmt"
)

// ErrProvisionTimeout is returned when a created server does not reach the
// running state with a public address in time.
var ErrProvisionTimeout = errors.New("node did not become reachable in time")

// StepBatchError is returned when the deployment steps kept failing on the
// transport level.
type StepBatchError struct {
	Node  string
	Tries int
	Err   error
}

func (e *StepBatchError) Error() string {
	return fmt.Sprintf("deployment step batch on %s failed after %d tries: %v", e.Node, e.Tries, e.Err)
}

func (e *StepBatchError) Unwrap() error {
	return e.Err
}
