package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyTurn          = NewDomainError(ErrCodeValidation, "turn requires text or an image")
	ErrInvalidRole        = NewDomainError(ErrCodeValidation, "invalid conversation role")
	ErrMissingDocumentID  = NewDomainError(ErrCodeValidation, "document id is required")
	ErrInvalidAttachment  = NewDomainError(ErrCodeValidation, "attachment must be an image")
	ErrAttachmentTooLarge = NewDomainError(ErrCodeValidation, "attachment exceeds size limit")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session has no conversation turns")
	ErrNoSyncRun       = NewDomainError(ErrCodeNotFound, "no completed sync run")
)

// Authorization errors
var (
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Collaborator failures surfaced to callers
var (
	ErrGenerationFailed = NewDomainError(ErrCodeUnavailable, "could not generate a response")
	ErrSourceListing    = NewDomainError(ErrCodeUnavailable, "document source enumeration failed")
)
