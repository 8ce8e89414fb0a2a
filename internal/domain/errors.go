// Package domain provides the canonical types and error taxonomy shared by the
// prompt registry, provider adapters, orchestrator and HTTP layer.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict indicates the resource already exists.
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeUnavailable indicates no upstream could serve the request.
	ErrorTypeUnavailable ErrorType = "service_unavailable"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is the error body written by the HTTP layer.
type APIError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	StatusCode int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrConflict creates a conflict error.
func ErrConflict(message string) *APIError {
	return NewAPIError(ErrorTypeConflict, message)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message)
}

// ConfigurationError means no provider is registered. Retrying cannot help.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "ai configuration error: " + e.Reason
}

// HTTPStatusCode maps configuration failures to 503.
func (e *ConfigurationError) HTTPStatusCode() int { return http.StatusServiceUnavailable }

// TemplateError means the operation has no registered template.
type TemplateError struct {
	Operation OperationKind
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("no prompt template registered for operation %q", e.Operation)
}

// HTTPStatusCode maps template failures to 400.
func (e *TemplateError) HTTPStatusCode() int { return http.StatusBadRequest }

// MissingArgumentError means a required placeholder had no value.
type MissingArgumentError struct {
	Operation OperationKind
	Field     string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("operation %q requires argument %q", e.Operation, e.Field)
}

// HTTPStatusCode maps missing arguments to 400.
func (e *MissingArgumentError) HTTPStatusCode() int { return http.StatusBadRequest }

// ProviderErrorKind classifies a single adapter failure.
type ProviderErrorKind string

const (
	ProviderErrorNetwork       ProviderErrorKind = "network"
	ProviderErrorAuth          ProviderErrorKind = "authentication"
	ProviderErrorRateLimit     ProviderErrorKind = "rate_limit"
	ProviderErrorMalformed     ProviderErrorKind = "malformed_response"
	ProviderErrorNotRegistered ProviderErrorKind = "not_registered"
	ProviderErrorTimeout       ProviderErrorKind = "timeout"
	ProviderErrorUpstream      ProviderErrorKind = "upstream"
)

// ProviderError is a single candidate's failure. The orchestrator absorbs these.
type ProviderError struct {
	Provider   ProviderID
	Kind       ProviderErrorKind
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %s failed (%s): %v", e.Provider, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError creates a ProviderError.
func NewProviderError(id ProviderID, kind ProviderErrorKind, cause error) *ProviderError {
	return &ProviderError{Provider: id, Kind: kind, Cause: cause}
}

// ProviderErrorFromStatus classifies a non-2xx upstream response.
func ProviderErrorFromStatus(id ProviderID, status int, body string) *ProviderError {
	kind := ProviderErrorUpstream
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ProviderErrorAuth
	case status == http.StatusTooManyRequests:
		kind = ProviderErrorRateLimit
	}
	body = strings.TrimSpace(body)
	if len(body) > 512 {
		body = body[:512]
	}
	return &ProviderError{
		Provider:   id,
		Kind:       kind,
		StatusCode: status,
		Cause:      fmt.Errorf("upstream returned status %d: %s", status, body),
	}
}

// AllProvidersFailedError is returned when every candidate failed.
type AllProvidersFailedError struct {
	Operation OperationKind
	Attempts  []Attempt
	LastCause error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for %s. Last error: %v", e.Operation, e.LastCause)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.LastCause }

// HTTPStatusCode maps exhausted fallback chains to 503.
func (e *AllProvidersFailedError) HTTPStatusCode() int { return http.StatusServiceUnavailable }

// Providers returns the attempted provider ids in order.
func (e *AllProvidersFailedError) Providers() []ProviderID {
	ids := make([]ProviderID, len(e.Attempts))
	for i, a := range e.Attempts {
		ids[i] = a.Provider
	}
	return ids
}

// StatusCoder is implemented by errors that know their HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

// HTTPStatus returns the status for err, defaulting to 500.
func HTTPStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
