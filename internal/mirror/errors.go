package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied marks a configuration error: the bot lacks the role
	// needed to create channels or webhooks in the receiver community.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLookupMiss indicates the source channel is not mirrored.
	ErrLookupMiss = errors.New("channel not mirrored")
	// ErrIncompleteTable indicates a destination channel without an endpoint.
	ErrIncompleteTable = errors.New("routing table incomplete")
	// ErrRefreshInProgress is returned by TryRefresh while another build runs.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// PlatformError wraps a failed call to the chat platform.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func platformErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Op: op, Err: err}
}

// Refresh stages.
const (
	StageDiscovery = "discovery"
	StageEndpoints = "endpoints"
	StageInstall   = "install"
)

// RefreshError reports which stage aborted a refresh.
type RefreshError struct {
	Stage string
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Stage, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err requires operator action rather
// than another attempt.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
