package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error (rejected before any state change)
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: "VALIDATION_ERROR", Message: message}
}

// NewStateConflictError creates a state-conflict error (invalid transition,
// aggregate left unchanged)
func NewStateConflictError(message string) *DomainError {
	return &DomainError{Code: "STATE_CONFLICT", Message: message}
}

// NewCapacityError creates a capacity error (requested quantity exceeds
// availability, never partially committed)
func NewCapacityError(message string) *DomainError {
	return &DomainError{Code: "INSUFFICIENT_AVAILABILITY", Message: message}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInvalidDateRange    = NewDomainError("INVALID_DATE_RANGE", "End date must be after start date")
)

// IsRetryable reports whether the error is a transient concurrency conflict
// that the caller may safely retry.
func IsRetryable(err error) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == ErrConcurrencyConflict.Code
}
