package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents rejected user input (e.g. dictionary readings)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePattern represents dictionary keys that fail to compile
	ErrorTypePattern ErrorType = "pattern"
	// ErrorTypeNotFound represents lookups of absent keys or speakers
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeSynthesis represents model load or speech synthesis failures
	ErrorTypeSynthesis ErrorType = "synthesis"
	// ErrorTypeTranscode represents external audio process failures
	ErrorTypeTranscode ErrorType = "transcode"
	// ErrorTypeSessionState represents commands issued against the wrong session state
	ErrorTypeSessionState ErrorType = "session_state"
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType reports the category. It is promoted to every error embedding *BaseError.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Dictionary Errors

// ValidationError is returned when a dictionary reading contains characters
// outside the phonetic alphabet
type ValidationError struct {
	*BaseError
	Field string
	Value string
}

func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s %q: %s", field, value, reason), nil),
		Field:     field,
		Value:     value,
	}
}

// PatternError is returned when a dictionary key cannot be compiled
type PatternError struct {
	*BaseError
	Pattern string
}

func NewPatternError(pattern string, err error) *PatternError {
	return &PatternError{
		BaseError: NewBaseError(ErrorTypePattern, fmt.Sprintf("cannot compile pattern %q", pattern), err),
		Pattern:   pattern,
	}
}

// NotFoundError is returned when removing an absent dictionary key or
// referring to an unknown speaker
type NotFoundError struct {
	*BaseError
	Kind string
	Key  string
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, key), nil),
		Kind:      kind,
		Key:       key,
	}
}

// Synthesis Errors

// SynthesisError is returned when the speech engine fails to load a model
// or to synthesize a waveform
type SynthesisError struct {
	*BaseError
	SpeakerID int
	Stage     string // "load" or "synthesize"
}

func NewSynthesisError(stage string, speakerID int, err error) *SynthesisError {
	return &SynthesisError{
		BaseError: NewBaseError(ErrorTypeSynthesis, fmt.Sprintf("%s failed for speaker %d", stage, speakerID), err),
		SpeakerID: speakerID,
		Stage:     stage,
	}
}

// TranscodeError is returned when the external audio process cannot be
// started or exits abnormally
type TranscodeError struct {
	*BaseError
	Executable string
	Missing    bool
	ExitCode   int
}

func NewTranscoderMissing(executable string, err error) *TranscodeError {
	return &TranscodeError{
		BaseError:  NewBaseError(ErrorTypeTranscode, fmt.Sprintf("%s was not found", executable), err),
		Executable: executable,
		Missing:    true,
		ExitCode:   -1,
	}
}

func NewTranscodeFailed(executable string, exitCode int, err error) *TranscodeError {
	return &TranscodeError{
		BaseError:  NewBaseError(ErrorTypeTranscode, fmt.Sprintf("%s exited abnormally (code %d)", executable, exitCode), err),
		Executable: executable,
		ExitCode:   exitCode,
	}
}

// Session Errors

// SessionStateError is returned when a command targets a session that does
// not exist, or one that is already connected
type SessionStateError struct {
	*BaseError
	GuildID string
	Reason  string
}

func NewSessionStateError(guildID, reason string) *SessionStateError {
	return &SessionStateError{
		BaseError: NewBaseError(ErrorTypeSessionState, fmt.Sprintf("guild %s: %s", guildID, reason), nil),
		GuildID:   guildID,
		Reason:    reason,
	}
}

// Session state reasons
const (
	ReasonNotConnected     = "not connected"
	ReasonAlreadyConnected = "already connected"
	ReasonClosed           = "session closed"
	ReasonBacklogFull      = "speech backlog full"
)

// Discord Errors

// DiscordError wraps failures of Discord API calls
type DiscordError struct {
	*BaseError
	Operation string
}

func NewDiscordError(operation string, err error) *DiscordError {
	return &DiscordError{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("discord %s failed", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typedError interface {
	error
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		var typed typedError
		if !errors.As(err, &typed) {
			return false
		}
		if typed.ErrorType() == errType {
			return true
		}
		err = errors.Unwrap(typed)
	}
	return false
}

// TypeOf returns the category of err, or "unknown"
func TypeOf(err error) ErrorType {
	var typed typedError
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return "unknown"
}

// IsUserFacing reports whether err should be shown to the command invoker
// rather than only logged
func IsUserFacing(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypePattern, ErrorTypeNotFound, ErrorTypeSessionState:
		return true
	}
	return false
}
