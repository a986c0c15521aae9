package fatfs

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// Kind classifies the errors fatfs returns. Callers that need to branch on
// failure type should use errors.Is with an &Error{Kind: ...} target built
// from the Kind values below rather than string-matching Error.Error().
type Kind int

const (
	_ Kind = iota
	// KindDeviceIO wraps a failure surfaced by the underlying Device.
	KindDeviceIO
	// KindUnexpectedEOF means a read ran past the logical end of a stream
	// (file or directory region) where more data was expected.
	KindUnexpectedEOF
	// KindWriteZero means a write to the Device reported fewer bytes
	// written than requested without returning an error.
	KindWriteZero
	// KindInvalidInput means a caller-supplied argument violates an
	// invariant (bad path component, zero-length name, oversized cluster).
	KindInvalidInput
	// KindNotFound means a path component does not exist.
	KindNotFound
	// KindAlreadyExists means a create operation collided with an existing
	// directory entry.
	KindAlreadyExists
	// KindDirectoryNotEmpty means a directory removal was attempted on a
	// directory containing entries other than "." and "..".
	KindDirectoryNotEmpty
	// KindCorruptedFileSystem means on-disk structures failed a sanity
	// check (bad signature, cluster out of range, FAT entry inconsistency).
	KindCorruptedFileSystem
	// KindNotEnoughSpace means the FAT engine could not satisfy a cluster
	// allocation request.
	KindNotEnoughSpace
)

func (k Kind) String() string {
	switch k {
	case KindDeviceIO:
		return "device I/O error"
	case KindUnexpectedEOF:
		return "unexpected EOF"
	case KindWriteZero:
		return "write returned zero bytes"
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindDirectoryNotEmpty:
		return "directory not empty"
	case KindCorruptedFileSystem:
		return "corrupted filesystem"
	case KindNotEnoughSpace:
		return "not enough space"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by every exported fatfs
// operation that can fail.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "OpenFile", "Mount"
	Path string // path involved, if any
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("fatfs: %s %q: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("fatfs: %s %q: %s", e.Op, e.Path, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("fatfs: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fatfs: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, &Error{Kind: KindNotFound}) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// MountWarnings aggregates non-fatal problems noticed while parsing the boot
// sector and FSInfo sector during Mount. A non-nil MountWarnings is still a
// successful mount; it is informational, following the pattern disko-style
// drivers use go-multierror for recoverable validation findings.
type MountWarnings struct {
	merr *multierror.Error
}

func (w *MountWarnings) add(format string, args ...any) {
	if w.merr == nil {
		w.merr = &multierror.Error{}
	}
	w.merr = multierror.Append(w.merr, fmt.Errorf(format, args...))
}

// Error implements error. A *MountWarnings with no appended warnings returns
// the empty string and should be treated as nil by callers that only care
// whether warnings exist; use HasWarnings to check.
func (w *MountWarnings) Error() string {
	if w == nil || w.merr == nil {
		return ""
	}
	return w.merr.Error()
}

// HasWarnings reports whether any warning was recorded.
func (w *MountWarnings) HasWarnings() bool {
	return w != nil && w.merr != nil && len(w.merr.Errors) > 0
}

// List returns the individual warning errors, in the order encountered.
func (w *MountWarnings) List() []error {
	if w == nil || w.merr == nil {
		return nil
	}
	return w.merr.Errors
}
