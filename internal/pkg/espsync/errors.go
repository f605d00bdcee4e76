package espsync

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the fatal outcomes SyncSubscribers can reject with.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindBadRequest     ErrorKind = "bad_request"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindConfiguration  ErrorKind = "configuration"
	KindRemoteProvider ErrorKind = "remote_provider"
	KindInternal       ErrorKind = "internal"
)

// SyncError is a classified fatal sync failure.
type SyncError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func newSyncError(kind ErrorKind, message string, err error) *SyncError {
	return &SyncError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain, defaulting to
// internal for anything unclassified.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsReconnectRequired reports whether the user must re-authorize the
// connection before syncing can resume.
func IsReconnectRequired(err error) bool {
	return KindOf(err) == KindUnauthorized
}
