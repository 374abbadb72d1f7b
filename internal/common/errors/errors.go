// Package errors provides standardized error handling for the QR workers and
// the HTTP form surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePhotoDecodeFailed ErrorCode = "PHOTO_DECODE_FAILED"
	ErrCodePhotoFetchFailed  ErrorCode = "PHOTO_FETCH_FAILED"
	ErrCodePhotoFetchTimeout ErrorCode = "PHOTO_FETCH_TIMEOUT"

	ErrCodeQRRenderFailed     ErrorCode = "QR_RENDER_FAILED"
	ErrCodeQRPayloadTooLarge  ErrorCode = "QR_PAYLOAD_TOO_LARGE"
	ErrCodeQRExportFailed     ErrorCode = "QR_EXPORT_FAILED"
	ErrCodeInvalidColor       ErrorCode = "INVALID_COLOR"
	ErrCodeInvalidMode        ErrorCode = "INVALID_MODE"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Coded is implemented by domain errors that know their own error code.
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewQRRenderError(err error) *StandardError {
	return newError(ErrCodeQRRenderFailed, "QR code rendering failed", err.Error(), false)
}

func NewQRPayloadTooLargeError(length int) *StandardError {
	return newError(ErrCodeQRPayloadTooLarge, "Payload exceeds QR code capacity",
		fmt.Sprintf("payloadBytes: %d", length), false)
}

func NewInvalidColorError(color string) *StandardError {
	return newError(ErrCodeInvalidColor, "Color is not part of the palette",
		fmt.Sprintf("color: %s", color), false)
}

func NewInvalidModeError(mode string) *StandardError {
	return newError(ErrCodeInvalidMode, "Unsupported QR code type",
		fmt.Sprintf("mode: %s", mode), false)
}

func NewSessionNotFoundError(id string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Form session not found",
		fmt.Sprintf("sessionId: %s", id), false)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// FromError normalizes any error into a StandardError. Domain errors that
// implement Coded keep their code; everything else becomes INTERNAL_ERROR.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	var coded Coded
	if stderrors.As(err, &coded) {
		return newError(coded.ErrorCode(), messageFor(coded.ErrorCode()), err.Error(), false)
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

func messageFor(code ErrorCode) string {
	switch code {
	case ErrCodePhotoDecodeFailed:
		return "Photo is not a decodable image"
	case ErrCodePhotoFetchFailed:
		return "Remote photo retrieval failed"
	case ErrCodePhotoFetchTimeout:
		return "Remote photo retrieval timed out"
	case ErrCodeQRPayloadTooLarge:
		return "Payload exceeds QR code capacity"
	case ErrCodeQRRenderFailed:
		return "QR code rendering failed"
	case ErrCodeInvalidColor:
		return "Color is not part of the palette"
	case ErrCodeInvalidMode:
		return "Unsupported QR code type"
	default:
		return "Unexpected error"
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code. Photo and
// render failures are never retried automatically.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExternalService:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PHOTO"):
		return "PHOTO"
	case strings.HasPrefix(codeStr, "QR"):
		return "RENDER"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SESSION"):
		return "FORM"
	case codeStr == string(ErrCodeExternalService) || codeStr == string(ErrCodeTimeout):
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}
