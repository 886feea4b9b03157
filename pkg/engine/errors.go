package engine

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed upstream call descriptor. The
// pipeline treats it as a soft failure: the passthrough attempt is
// abandoned and local resolution proceeds.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upstream call: %s", e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RegistryError reports a mock configuration the route table cannot
// accept. It is fatal: the engine refuses to start on a broken table.
type RegistryError struct {
	EndpointID string
	Reason     string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry: endpoint %s: %s", e.EndpointID, e.Reason)
}
