package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter      ErrorCode = 100
	ErrCodeInvalidConfiguration  ErrorCode = 101
	ErrCodeMissingParameter      ErrorCode = 102
	ErrCodeValidationFailed      ErrorCode = 103
	ErrCodeUnsupportedResolution ErrorCode = 104
	ErrCodeInvalidDateRange      ErrorCode = 105
	ErrCodeInvalidPage           ErrorCode = 106
	ErrCodeInvalidProvider       ErrorCode = 107

	// Data errors (200-299)
	ErrCodeMalformedRow    ErrorCode = 200
	ErrCodeMissingZipEntry ErrorCode = 201
	ErrCodeDataNotFound    ErrorCode = 202

	// I/O errors (300-399)
	ErrCodeIOFailure ErrorCode = 300

	// Source errors (400-499)
	ErrCodeTransientSource   ErrorCode = 400
	ErrCodeSourceFetchFailed ErrorCode = 401

	// Job errors (500-599)
	ErrCodeJobNotFound   ErrorCode = 500
	ErrCodeJobPersisting ErrorCode = 501

	// Gateway errors (600-699)
	ErrCodeGatewayStartFailed ErrorCode = 600
	ErrCodeGatewayNotReady    ErrorCode = 601

	// Credential errors (700-799)
	ErrCodeCredentialStore ErrorCode = 700
)
