package api

import (
	"errors"
	"fmt"
)

// NetworkError reports a timeout, connection failure or non-success status.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataShapeError reports a response that does not match the expected schema.
type DataShapeError struct {
	Endpoint string
	Field    string
	Reason   string
}

func (e *DataShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: invalid response: %s", e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("%s: invalid field %s: %s", e.Endpoint, e.Field, e.Reason)
}

// UserActionError reports an upload, reset or chat request rejected by the
// backend.
type UserActionError struct {
	Action     string
	StatusCode int
	Detail     string
}

func (e *UserActionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected (status %d)", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("%s rejected (status %d): %s", e.Action, e.StatusCode, e.Detail)
}

// IsNetwork reports whether err wraps a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDataShape reports whether err wraps a DataShapeError.
func IsDataShape(err error) bool {
	var de *DataShapeError
	return errors.As(err, &de)
}

// IsUserAction reports whether err wraps a UserActionError.
func IsUserAction(err error) bool {
	var ue *UserActionError
	return errors.As(err, &ue)
}
