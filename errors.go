package automation

import (
	"errors"
	"fmt"
	"time"
)

// Error codes
const (
	ErrCodeConfigInvalid       = "CONFIG_INVALID"
	ErrCodeUnknownStepType     = "UNKNOWN_STEP_TYPE"
	ErrCodeCredentialsMissing  = "CREDENTIALS_MISSING"
	ErrCodeProviderError       = "PROVIDER_ERROR"
	ErrCodeRecipientUnresolved = "RECIPIENT_UNRESOLVED"
	ErrCodeExecutionFailed     = "EXECUTION_FAILED"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// StepError represents a fatal error raised by a step handler. Its message
// is persisted onto the step execution row.
type StepError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	StepType  string    `json:"stepType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e.StepType != "" {
		return fmt.Sprintf("[%s] %s (step: %s)", e.Code, e.Message, e.StepType)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewStepError creates a new step error
func NewStepError(code, format string, args ...interface{}) *StepError {
	return &StepError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// WithStepType attaches the step type to the error
func (e *StepError) WithStepType(stepType string) *StepError {
	e.StepType = stepType
	return e
}

// ConfigError reports a missing or malformed required config field.
func ConfigError(field, stepType string) *StepError {
	return NewStepError(ErrCodeConfigInvalid, "missing required config field %q", field).WithStepType(stepType)
}

// UnknownStepTypeError is fatal: unknown step types are never silently skipped.
func UnknownStepTypeError(stepType string) *StepError {
	return NewStepError(ErrCodeUnknownStepType, "Unknown step type: %s", stepType)
}

// CredentialsMissingError reports absent required integration credentials.
func CredentialsMissingError(provider string) *StepError {
	return NewStepError(ErrCodeCredentialsMissing, "no active %s credentials configured for tenant", provider)
}

// IsCredentialsMissing checks whether err is a missing-credentials error,
// used by channel handlers applying the availability-check-before-send policy.
func IsCredentialsMissing(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCredentialsMissing
	}
	return false
}
