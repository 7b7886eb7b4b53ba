package media

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetTooLarge indicates the payload exceeds the configured max attachment size.
	ErrAssetTooLarge = errors.New("attachment too large")
	// ErrInvalidSource indicates an attachment without a fetchable URL.
	ErrInvalidSource = errors.New("invalid attachment source")
)

// FetchError reports a failed attachment download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
