package lifecycle

import "fmt"

// Machine-readable reason codes. Bulk callers aggregate these verbatim,
// so they are part of the API contract.
const (
	CodeInvalidTransition   = "invalid_transition"
	CodeMissingDepartment   = "missing_department"
	CodeMissingOfficer      = "missing_officer"
	CodeNotAuthorized       = "not_authorized"
	CodeConcurrentConflict  = "concurrent_conflict"
	CodeDuplicateOpenAppeal = "duplicate_open_appeal"
	CodeNotFound            = "not_found"
	CodeInvalidArgument     = "invalid_argument"
)

// Error carries a reason code alongside the human message.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError returns the typed error if err is one.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
