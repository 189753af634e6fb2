package safety

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded aborts a pipeline run before any detector is dispatched
// when the tenant has insufficient safety inference units.
var ErrQuotaExceeded = errors.New("insufficient safety inference units")

type configurationError struct {
	Reason string
}

func (e *configurationError) Error() string {
	return fmt.Sprintf("invalid safety configuration: %s", e.Reason)
}

func NewConfigurationError(reason string) error {
	return &configurationError{Reason: reason}
}

// IsConfigurationError reports whether err is a configuration rejection.
func IsConfigurationError(err error) bool {
	var ce *configurationError
	return errors.As(err, &ce)
}

// DetectorUnavailableError signals that an upstream classifier call failed or
// timed out. It is absorbed into the verdict as a visible-but-unflagged
// finding; it never propagates to the caller.
type DetectorUnavailableError struct {
	Category Category
	Err      error
}

func (e *DetectorUnavailableError) Error() string {
	return fmt.Sprintf("%s detector unavailable: %v", e.Category, e.Err)
}

func (e *DetectorUnavailableError) Unwrap() error {
	return e.Err
}

// DetectorFaultError signals malformed detector output or an internal
// detector fault. For verdict purposes it is treated like unavailability but
// logged distinctly for operability.
type DetectorFaultError struct {
	Category Category
	Err      error
}

func (e *DetectorFaultError) Error() string {
	return fmt.Sprintf("%s detector fault: %v", e.Category, e.Err)
}

func (e *DetectorFaultError) Unwrap() error {
	return e.Err
}

// RemediationUnavailableError signals that the rewrite call failed. The
// orchestrator escalates the enforcement action to blocked when it sees one.
type RemediationUnavailableError struct {
	Err error
}

func (e *RemediationUnavailableError) Error() string {
	return fmt.Sprintf("remediation unavailable: %v", e.Err)
}

func (e *RemediationUnavailableError) Unwrap() error {
	return e.Err
}
