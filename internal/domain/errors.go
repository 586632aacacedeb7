package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes backup failures so callers can tell fatal extraction
// problems apart from skippable extra-object failures and native-backup issues.
type ErrorKind string

const (
	ErrConfiguration ErrorKind = "configuration"
	ErrConnection    ErrorKind = "connection"
	ErrTimeout       ErrorKind = "timeout"
	ErrExtraction    ErrorKind = "extraction"
	ErrExtraObject   ErrorKind = "extra_object"
	ErrNativeBackup  ErrorKind = "native_backup"
)

// BackupError wraps an underlying error with its kind and the operation that
// produced it.
type BackupError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *BackupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

func NewBackupError(kind ErrorKind, op string, err error) *BackupError {
	return &BackupError{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err, or ErrExtraction when err carries no kind.
func KindOf(err error) ErrorKind {
	var be *BackupError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrExtraction
}

// IsFatal reports whether err must terminate the strategy. Extra-object and
// native-backup failures are reported but do not fail the script.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case ErrExtraObject, ErrNativeBackup:
		return false
	}
	return true
}
