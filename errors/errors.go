package errors

import (
	"fmt"
)

// Error categories for structured error handling
const (
	CategoryConfig     = "config"
	CategoryDatabase   = "database"
	CategoryValidation = "validation"
	CategoryRecommend  = "recommend"
	CategoryServer     = "server"
)

// BeatBridgeError represents a structured error with category and context
type BeatBridgeError struct {
	Category string
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
}

func (e *BeatBridgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *BeatBridgeError) Unwrap() error {
	return e.Cause
}

func (e *BeatBridgeError) WithContext(key string, value interface{}) *BeatBridgeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new BeatBridgeError
func New(category, code, message string) *BeatBridgeError {
	return &BeatBridgeError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with BeatBridgeError
func Wrap(err error, category, code, message string) *BeatBridgeError {
	return &BeatBridgeError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// Config errors
var (
	ErrInvalidPort         = New(CategoryConfig, "INVALID_PORT", "invalid port number")
	ErrInvalidLogLevel     = New(CategoryConfig, "INVALID_LOG_LEVEL", "invalid log level")
	ErrInvalidDatabasePath = New(CategoryConfig, "INVALID_DATABASE_PATH", "invalid database path")
	ErrInvalidInterval     = New(CategoryConfig, "INVALID_INTERVAL", "invalid recommendation interval")
	ErrInvalidThreshold    = New(CategoryConfig, "INVALID_THRESHOLD", "invalid similarity threshold")
)

// Database errors
var (
	ErrDatabaseConnection = New(CategoryDatabase, "CONNECTION_FAILED", "database connection failed")
	ErrDatabaseQuery      = New(CategoryDatabase, "QUERY_FAILED", "database query failed")
	ErrDatabaseMigration  = New(CategoryDatabase, "MIGRATION_FAILED", "database migration failed")
	ErrUserNotFound       = New(CategoryDatabase, "USER_NOT_FOUND", "user not found")
	ErrNoRecommendation   = New(CategoryDatabase, "NO_RECOMMENDATION", "no recommendation found")
	ErrTransactionFailed  = New(CategoryDatabase, "TRANSACTION_FAILED", "database transaction failed")
)

// Recommendation errors
var (
	ErrRunInProgress = New(CategoryRecommend, "RUN_IN_PROGRESS", "a recommendation run is already in progress")
	ErrNoCandidate   = New(CategoryRecommend, "NO_CANDIDATE", "no candidate artist survived exclusion")
	ErrHistoryLoad   = New(CategoryRecommend, "HISTORY_LOAD_FAILED", "failed to load song tag history")
)

// Server errors
var (
	ErrServerStart    = New(CategoryServer, "START_FAILED", "server failed to start")
	ErrServerShutdown = New(CategoryServer, "SHUTDOWN_FAILED", "server shutdown failed")
)

// Validation errors
var (
	ErrValidationFailed = New(CategoryValidation, "VALIDATION_FAILED", "validation failed")
	ErrInvalidInput     = New(CategoryValidation, "INVALID_INPUT", "invalid input")
	ErrMissingParameter = New(CategoryValidation, "MISSING_PARAMETER", "missing required parameter")
	ErrUnknownTag       = New(CategoryValidation, "UNKNOWN_TAG", "tag value not in vocabulary")
)

// Helper functions for common error patterns
func IsCategory(err error, category string) bool {
	var bbErr *BeatBridgeError
	if !As(err, &bbErr) {
		return false
	}
	return bbErr.Category == category
}

func GetErrorCode(err error) string {
	var bbErr *BeatBridgeError
	if !As(err, &bbErr) {
		return ""
	}
	return bbErr.Code
}

func GetErrorContext(err error) map[string]interface{} {
	var bbErr *BeatBridgeError
	if !As(err, &bbErr) {
		return nil
	}
	return bbErr.Context
}

// As is a wrapper around errors.As
func As(err error, target interface{}) bool {
	if err == nil {
		return false
	}
	// Simple type assertion for our use case
	if bbErr, ok := err.(*BeatBridgeError); ok {
		if targetPtr, ok := target.(**BeatBridgeError); ok {
			*targetPtr = bbErr
			return true
		}
	}
	return false
}

// IsCode reports whether the error carries the given code
func IsCode(err error, code string) bool {
	return GetErrorCode(err) == code
}
