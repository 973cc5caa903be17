package apperr

import "net/http"

type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"
	CodeMalformedPayload  Code = "MALFORMED_PAYLOAD"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeStorageFailure    Code = "STORAGE_FAILURE"
)

// HTTPStatus maps an error code to the status the API answers with.
// A duplicate signup is reported as 403 to match the existing bot client.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidIdentifier, CodeMalformedPayload:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeConflict:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
