package vmm

// Error describes a boot-preparation error. Errors are defined as global
// variables that are pointers to the Error structure so callers can match
// them by identity; errors that carry an underlying cause are created on
// the fly with WrapError and matched via errors.Is on the cause.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	// Err holds the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause of this error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError returns a new Error that records cause as the underlying error.
func WrapError(module, message string, cause error) *Error {
	return &Error{Module: module, Message: message, Err: cause}
}
