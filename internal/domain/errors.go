package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	// ErrStepUpRequired gates destructive admin mutations behind recent re-authentication.
	ErrStepUpRequired = errors.New("step-up authentication required")
	// ErrQuotaExceeded is the normal-branch outcome when a license has no download
	// slots left in the rolling window. It is not an infrastructure failure.
	ErrQuotaExceeded       = errors.New("download limit reached")
	ErrLicenseNotActive    = errors.New("license not active")
	ErrOrderNotFulfillable = errors.New("order not fulfillable")
)

// File-origin failures stay distinct for operator logs but are surfaced to
// clients as one generic denial. Handlers must never echo these codes.
var (
	ErrInvalidFileURL         = errors.New("INVALID_FILE_URL")
	ErrFileURLScheme          = errors.New("INVALID_FILE_URL_PROTOCOL")
	ErrFileHostNotAllowed     = errors.New("FILE_URL_HOST_NOT_ALLOWED")
	ErrFileHostNotAllowlisted = errors.New("FILE_URL_HOST_NOT_ALLOWLISTED")
)

// IsFileOriginError reports whether err is any of the file-origin sentinels.
func IsFileOriginError(err error) bool {
	return errors.Is(err, ErrInvalidFileURL) ||
		errors.Is(err, ErrFileURLScheme) ||
		errors.Is(err, ErrFileHostNotAllowed) ||
		errors.Is(err, ErrFileHostNotAllowlisted)
}
