package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Admission errors
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeDuplicateDetected   Code = "DUPLICATE_DETECTED"
	CodeModerationViolation Code = "MODERATION_VIOLATION"
	CodeBanned              Code = "BANNED"

	// Consensus errors
	CodeIneligibleValidator Code = "INELIGIBLE_VALIDATOR"
	CodeSubmissionTerminal  Code = "SUBMISSION_TERMINAL"

	// Publish errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeProofHashMismatch  Code = "PROOF_HASH_MISMATCH"

	// Intake errors
	CodeTitleEmpty   Code = "TITLE_EMPTY"
	CodeContentEmpty Code = "CONTENT_EMPTY"
	CodeAgentEmpty   Code = "AGENT_EMPTY"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes for the gateway.
func (c Code) HTTPStatus() int {
	switch c {
	// Unprocessable submissions, bad input
	case CodeValidationFailed,
		CodeTitleEmpty,
		CodeContentEmpty,
		CodeAgentEmpty:
		return http.StatusUnprocessableEntity

	// State doesn't allow the operation
	case CodeDuplicateDetected,
		CodeSubmissionTerminal:
		return http.StatusConflict

	// Caller is not allowed to perform the operation
	case CodeModerationViolation,
		CodeBanned,
		CodeIneligibleValidator:
		return http.StatusForbidden

	// Resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Degraded collaborators
	case CodeStorageUnavailable,
		CodeProofHashMismatch:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
