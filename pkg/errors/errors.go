package errors

import (
	goerrors "errors"
	"fmt"
)

// Application error types organized by category for better error handling

type ErrorType int

// Domain errors - errors related to interpreting caller input
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeRegionResolution
	ErrorTypeUnknownVariable

	// Infrastructure Errors - errors related to talking to provider APIs
	ErrorTypeAuthentication
	ErrorTypeTransport
	ErrorTypeHTTPStatus
	ErrorTypePayloadParse

	// System/Configuration Errors - errors related to system setup and configuration
	ErrorTypeConfiguration
)

// String returns the string representation of error type
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeRegionResolution:
		return "REGION_RESOLUTION_ERROR"
	case ErrorTypeUnknownVariable:
		return "UNKNOWN_VARIABLE_ERROR"
	case ErrorTypeAuthentication:
		return "AUTHENTICATION_ERROR"
	case ErrorTypeTransport:
		return "TRANSPORT_ERROR"
	case ErrorTypeHTTPStatus:
		return "HTTP_STATUS_ERROR"
	case ErrorTypePayloadParse:
		return "PAYLOAD_PARSE_ERROR"
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	// Status carries the HTTP status code for ErrorTypeHTTPStatus errors.
	Status int
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

func Wrap(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// Domain Error Constructors
func NewRegionResolutionError(message string, cause error) *AppError {
	return Wrap(ErrorTypeRegionResolution, message, cause)
}

func NewUnknownVariableError(message string) *AppError {
	return New(ErrorTypeUnknownVariable, message)
}

// Infrastructure Error Constructors
func NewAuthenticationError(message string, cause error) *AppError {
	return Wrap(ErrorTypeAuthentication, message, cause)
}

func NewTransportError(message string, cause error) *AppError {
	return Wrap(ErrorTypeTransport, message, cause)
}

func NewHTTPStatusError(message string, status int) *AppError {
	return &AppError{
		Type:    ErrorTypeHTTPStatus,
		Message: message,
		Status:  status,
	}
}

func NewPayloadParseError(message string, cause error) *AppError {
	return Wrap(ErrorTypePayloadParse, message, cause)
}

// System Error Constructors
func NewConfigurationError(message string, cause error) *AppError {
	return Wrap(ErrorTypeConfiguration, message, cause)
}

// IsType checks whether err is (or wraps) an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}
