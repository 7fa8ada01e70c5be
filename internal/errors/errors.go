package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a memclass error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotAttached        ErrorCode = "NOT_ATTACHED"        // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrNameAlreadyExists  ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrDanglingReference  ErrorCode = "DANGLING_REFERENCE"  // 409
	ErrExpansionLimit     ErrorCode = "EXPANSION_LIMIT"     // 422
	ErrInvalidHex         ErrorCode = "INVALID_HEX"         // 422
	ErrOutOfRange         ErrorCode = "OUT_OF_RANGE"        // 422
	ErrInvalidNumber      ErrorCode = "INVALID_NUMBER"      // 422
	ErrProjectFormat      ErrorCode = "PROJECT_FORMAT"      // 422
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION" // 422
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrMemoryRead         ErrorCode = "MEMORY_READ"         // 502
	ErrMemoryWrite        ErrorCode = "MEMORY_WRITE"        // 502
)

// MemclassError represents a structured error with code, status, and details.
type MemclassError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Cause is the underlying error, if any. It is never shown to MCP clients.
	Cause error
}

// Error implements the error interface.
func (e *MemclassError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *MemclassError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MemclassError {
	return &MemclassError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotAttached creates a 400 error for operations that need a memory source.
func NewNotAttached() *MemclassError {
	return &MemclassError{
		Code:    ErrNotAttached,
		Status:  400,
		Message: "no process or dump attached",
	}
}

// NewNotFound creates a 404 error for a missing class, field or bookmark.
func NewNotFound(kind, identifier string) *MemclassError {
	return &MemclassError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing project or dump file.
func NewFileNotFound(path string) *MemclassError {
	return &MemclassError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNameAlreadyExists creates a 409 error for class or bookmark name collisions.
func NewNameAlreadyExists(kind, name string) *MemclassError {
	return &MemclassError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("%s with name %q already exists", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewDanglingReference creates a 409 error for a pointer field whose target class is gone.
func NewDanglingReference(target string) *MemclassError {
	return &MemclassError{
		Code:    ErrDanglingReference,
		Status:  409,
		Message: fmt.Sprintf("pointer target class no longer exists: %s", target),
		Details: map[string]any{"target": target},
	}
}

// NewExpansionLimit creates a 422 error for a pointer expansion that hit its frame budget.
func NewExpansionLimit(frames int) *MemclassError {
	return &MemclassError{
		Code:    ErrExpansionLimit,
		Status:  422,
		Message: fmt.Sprintf("pointer expansion stopped after %d frames", frames),
		Details: map[string]any{"frames": frames},
	}
}

// NewInvalidHex creates a 422 error for hex text of the wrong length or alphabet.
func NewInvalidHex(text string, digits int) *MemclassError {
	return &MemclassError{
		Code:    ErrInvalidHex,
		Status:  422,
		Message: fmt.Sprintf("expected exactly %d hex digits, got %q", digits, text),
		Details: map[string]any{"text": text, "digits": digits},
	}
}

// NewOutOfRange creates a 422 error for a number that does not fit the field.
func NewOutOfRange(text, kind string) *MemclassError {
	return &MemclassError{
		Code:    ErrOutOfRange,
		Status:  422,
		Message: fmt.Sprintf("value %q is out of range for %s", text, kind),
		Details: map[string]any{"text": text, "kind": kind},
	}
}

// NewInvalidNumber creates a 422 error for text that is not a number.
func NewInvalidNumber(text string) *MemclassError {
	return &MemclassError{
		Code:    ErrInvalidNumber,
		Status:  422,
		Message: fmt.Sprintf("not a number: %q", text),
		Details: map[string]any{"text": text},
	}
}

// NewProjectFormat creates a 422 error for a malformed project file.
func NewProjectFormat(msg string, cause error) *MemclassError {
	return &MemclassError{
		Code:    ErrProjectFormat,
		Status:  422,
		Message: msg,
		Cause:   cause,
	}
}

// NewUnsupportedVersion creates a 422 error for a project file written by an unknown version.
func NewUnsupportedVersion(version int64) *MemclassError {
	return &MemclassError{
		Code:    ErrUnsupportedVersion,
		Status:  422,
		Message: fmt.Sprintf("unsupported project version %d", version),
		Details: map[string]any{"version": version},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *MemclassError {
	return &MemclassError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewMemoryRead creates a 502 error for an inaccessible read.
func NewMemoryRead(addr uint64, length int, cause error) *MemclassError {
	msg := fmt.Sprintf("cannot read %d bytes at 0x%X", length, addr)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &MemclassError{
		Code:    ErrMemoryRead,
		Status:  502,
		Message: msg,
		Details: map[string]any{"address": fmt.Sprintf("0x%X", addr), "length": length},
		Cause:   cause,
	}
}

// NewMemoryWrite creates a 502 error for a rejected write.
func NewMemoryWrite(addr uint64, length int, cause error) *MemclassError {
	msg := fmt.Sprintf("cannot write %d bytes at 0x%X", length, addr)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &MemclassError{
		Code:    ErrMemoryWrite,
		Status:  502,
		Message: msg,
		Details: map[string]any{"address": fmt.Sprintf("0x%X", addr), "length": length},
		Cause:   cause,
	}
}

// NewChainFailed creates a 502 error for a pointer chain that could not be
// followed past step.
func NewChainFailed(step int, addr uint64, cause error) *MemclassError {
	msg := fmt.Sprintf("pointer chain broken at step %d (0x%X)", step, addr)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &MemclassError{
		Code:    ErrMemoryRead,
		Status:  502,
		Message: msg,
		Details: map[string]any{"step": step, "address": fmt.Sprintf("0x%X", addr)},
		Cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MemclassError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MemclassError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// As returns the first MemclassError in err's chain.
func As(err error) (*MemclassError, bool) {
	var mErr *MemclassError
	if stderrors.As(err, &mErr) {
		return mErr, true
	}
	return nil, false
}

// Is checks if err is (or wraps) a MemclassError with the given code.
func Is(err error, code ErrorCode) bool {
	if mErr, ok := As(err); ok {
		return mErr.Code == code
	}
	return false
}
