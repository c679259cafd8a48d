package foundry

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeTransaction  ErrorType = "transaction"
	ErrorTypeReference    ErrorType = "reference"
)

// Error codes consolidated from all modules
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthorizedAccess = "UNAUTHORIZED_ACCESS"
	ErrCodeForbiddenProperty  = "FORBIDDEN_PROPERTY"
	ErrCodeSchemaNotFound     = "SCHEMA_NOT_FOUND"
	ErrCodePropertyNotFound   = "PROPERTY_NOT_FOUND"
	ErrCodeSchemaInvalid      = "SCHEMA_INVALID"
	ErrCodeQueryExecution     = "QUERY_EXECUTION_ERROR"
	ErrCodeTransactionFailed  = "TRANSACTION_FAILED"
	ErrCodeConnectionFailed   = "CONNECTION_FAILED"
	ErrCodeConversionFailed   = "CONVERSION_FAILED"
	ErrCodeReferenceInvalid   = "REFERENCE_INVALID"
	ErrCodeDependencyInvalid  = "DEPENDENCY_INVALID"
	ErrCodeCircularDependency = "CIRCULAR_DEPENDENCY"
	ErrCodeBatchSizeExceeded  = "BATCH_SIZE_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// FoundryError is the unified error type returned across the engine.
// Status carries the HTTP status the error maps to at the API surface.
type FoundryError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Entity  string         `json:"entity,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FoundryError) Error() string {
	if e.Entity != "" && e.Field != "" {
		return fmt.Sprintf("[%s:%s] entity %s, property %s: %s", e.Type, e.Code, e.Entity, e.Field, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("[%s:%s] entity %s: %s", e.Type, e.Code, e.Entity, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *FoundryError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a FoundryError
func (e *FoundryError) WithDetails(details map[string]any) *FoundryError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithCause adds a cause to a FoundryError
func (e *FoundryError) WithCause(cause error) *FoundryError {
	e.Cause = cause
	return e
}

// WithEntity adds entity context to a FoundryError
func (e *FoundryError) WithEntity(entity string) *FoundryError {
	e.Entity = entity
	return e
}

// WithField adds property context to a FoundryError
func (e *FoundryError) WithField(field string) *FoundryError {
	e.Field = field
	return e
}

// ============================================================================
// FoundryError Constructors
// ============================================================================

// NewFoundryError creates a new FoundryError
func NewFoundryError(errorType ErrorType, code string, status int, message string) *FoundryError {
	return &FoundryError{
		Type:    errorType,
		Code:    code,
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error (HTTP 400)
func NewValidationError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeValidationFailed, 400, message)
}

// NewPermissionError creates a permission error (HTTP 402)
func NewPermissionError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeUnauthorized, ErrCodeUnauthorizedAccess, 402, message)
}

// NewForbiddenError creates a forbidden property error (HTTP 403)
func NewForbiddenError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeUnauthorized, ErrCodeForbiddenProperty, 403, message)
}

// NewSchemaNotFoundError creates a schema not found error
func NewSchemaNotFoundError(schemaName string) *FoundryError {
	return NewFoundryError(ErrorTypeNotFound, ErrCodeSchemaNotFound, 404,
		fmt.Sprintf("schema '%s' not found", schemaName)).WithEntity(schemaName)
}

// NewPropertyLookupError reports a query parameter that names no property.
// These surface as server errors rather than bad requests: the set of legal
// parameters is derived from the model, so an unknown one means a routing
// or model defect, not caller input.
func NewPropertyLookupError(schemaName, property string) *FoundryError {
	return NewFoundryError(ErrorTypeInternal, ErrCodePropertyNotFound, 500,
		fmt.Sprintf("Invalid query parameter, property not found. schema object: %s, property: %s", schemaName, property)).
		WithEntity(schemaName).WithField(property)
}

// NewSchemaInvalidError creates a schema definition error
func NewSchemaInvalidError(schemaName, message string) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeSchemaInvalid, 500, message).WithEntity(schemaName)
}

// NewQueryExecutionError creates a query execution error
func NewQueryExecutionError(message string, cause error) *FoundryError {
	return NewFoundryError(ErrorTypeExecution, ErrCodeQueryExecution, 500, message).WithCause(cause)
}

// NewTransactionError creates a transaction error
func NewTransactionError(message string, cause error) *FoundryError {
	return NewFoundryError(ErrorTypeTransaction, ErrCodeTransactionFailed, 500, message).WithCause(cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(message string, cause error) *FoundryError {
	return NewFoundryError(ErrorTypeInternal, ErrCodeConnectionFailed, 500, message).WithCause(cause)
}

// NewConversionError creates a value conversion error
func NewConversionError(message string, cause error) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeConversionFailed, 400, message).WithCause(cause)
}

// NewReferenceError creates a reference resolution error
func NewReferenceError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeReference, ErrCodeReferenceInvalid, 400, message)
}

// NewDependencyError creates a dependency declaration error
func NewDependencyError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeDependencyInvalid, 400, message)
}

// NewCircularDependencyError creates a dependency cycle error
func NewCircularDependencyError(message string) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeCircularDependency, 400, message)
}

// NewBatchSizeExceededError creates a batch size exceeded error
func NewBatchSizeExceededError(size, maxSize int) *FoundryError {
	return NewFoundryError(ErrorTypeValidation, ErrCodeBatchSizeExceeded, 400,
		fmt.Sprintf("batch size %d exceeds maximum allowed size %d", size, maxSize)).
		WithDetails(map[string]any{"size": size, "max_size": maxSize})
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *FoundryError {
	return NewFoundryError(ErrorTypeInternal, ErrCodeInternalError, 500, message).WithCause(cause)
}

// ============================================================================
// Error checking utilities
// ============================================================================

// AsFoundryError extracts a FoundryError from an error chain
func AsFoundryError(err error) (*FoundryError, bool) {
	var fe *FoundryError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// StatusOf returns the HTTP status an error maps to, defaulting to 500
func StatusOf(err error) int {
	if fe, ok := AsFoundryError(err); ok && fe.Status != 0 {
		return fe.Status
	}
	return 500
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if fe, ok := AsFoundryError(err); ok {
		return fe.Type == ErrorTypeValidation
	}
	return false
}

// IsPermissionError checks if an error is a permission error
func IsPermissionError(err error) bool {
	if fe, ok := AsFoundryError(err); ok {
		return fe.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsReferenceError checks if an error is a reference error
func IsReferenceError(err error) bool {
	if fe, ok := AsFoundryError(err); ok {
		return fe.Type == ErrorTypeReference
	}
	return false
}

// IsTransactionError checks if an error is a transaction error
func IsTransactionError(err error) bool {
	if fe, ok := AsFoundryError(err); ok {
		return fe.Type == ErrorTypeTransaction
	}
	return false
}

// IsSchemaNotFoundError checks if an error reports an unknown schema object
func IsSchemaNotFoundError(err error) bool {
	if fe, ok := AsFoundryError(err); ok {
		return fe.Code == ErrCodeSchemaNotFound
	}
	return false
}
