package photo

import (
	"errors"
	"fmt"
)

var (
	ErrNoSources = errors.New("at least one source folder is required")
	ErrNoTarget  = errors.New("a target folder is required")
)

// ErrorKind is a coarse classification of processing failures.
type ErrorKind string

const (
	KindFileAccess    ErrorKind = "file_access"
	KindHash          ErrorKind = "hash"
	KindCopy          ErrorKind = "copy"
	KindRename        ErrorKind = "rename"
	KindInvalidConfig ErrorKind = "invalid_config"
)

// OpError wraps a failure with the operation, the file it concerns and, for
// copies and renames, the destination.
type OpError struct {
	Op     string
	Kind   ErrorKind
	Path   string
	Target string
	Err    error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s", e.Path)
		if e.Target != "" {
			base += fmt.Sprintf(" target=%s", e.Target)
		}
		base += ")"
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err wraps an OpError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}

// Failure is a per-file error that did not stop the run.
type Failure struct {
	Path string
	Err  error
}
