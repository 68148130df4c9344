package app

import "fmt"

// DomainError is an application-level failure the HTTP layer translates
// directly into a status code and a stable machine-readable error code.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes raised by the service layer. The HTTP mapper layers the
// auth, session and export codes on top of these.
const (
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeNotInRoom       = "NOT_IN_ROOM"
	codeLiveUnavailable = "LIVE_UNAVAILABLE"
)

func validationError(message string, details any) *DomainError {
	return &DomainError{Status: 422, Code: codeValidation, Message: message, Details: details}
}

func notFoundError(message string) *DomainError {
	return &DomainError{Status: 404, Code: codeNotFound, Message: message}
}

func conflictError(code, message string) *DomainError {
	return &DomainError{Status: 409, Code: code, Message: message}
}

func unavailableError(code, message string) *DomainError {
	return &DomainError{Status: 503, Code: code, Message: message}
}
