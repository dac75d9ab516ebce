package youtube

import (
	"encoding/json"
	"errors"

	"google.golang.org/api/googleapi"
)

var (
	// ErrQuotaExceeded indicates the provider rejected the API key's daily
	// quota allotment. The key should be rotated out until its reset.
	ErrQuotaExceeded = errors.New("youtube api quota exceeded")
	// ErrInvalidKey indicates the provider rejected the API key itself.
	// The key should be permanently removed from rotation.
	ErrInvalidKey = errors.New("youtube api key invalid")
	// ErrMalformedResponse indicates the provider returned an unexpected
	// response shape. Key state is unaffected.
	ErrMalformedResponse = errors.New("malformed youtube api response")
)

var quotaReasons = map[string]struct{}{
	"quotaExceeded":         {},
	"dailyLimitExceeded":    {},
	"rateLimitExceeded":     {},
	"userRateLimitExceeded": {},
}

// classifyError translates transport and API errors into the closed taxonomy
// the fetch scheduler acts on. Anything not recognised is surfaced as-is and
// treated as transient by callers.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var jsonSyntaxErr *json.SyntaxError
	var jsonTypeErr *json.UnmarshalTypeError
	if errors.As(err, &jsonSyntaxErr) || errors.As(err, &jsonTypeErr) {
		return ErrMalformedResponse
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	for _, item := range apiErr.Errors {
		if _, ok := quotaReasons[item.Reason]; ok {
			return ErrQuotaExceeded
		}
		if item.Reason == "keyInvalid" {
			return ErrInvalidKey
		}
	}

	switch apiErr.Code {
	case 400, 401, 403:
		// Non-quota rejections at these statuses mean the key is unusable:
		// malformed key, revoked key, or API not enabled for the project.
		return ErrInvalidKey
	}

	return err
}

// isTransient reports whether a fetch attempt is worth retrying with the same
// key: network failures and provider 5xx responses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	// Unclassified non-API errors are transport-level failures.
	return true
}
