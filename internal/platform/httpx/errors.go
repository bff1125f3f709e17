package httpx

import (
	"errors"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RespondError translates a domain error into the JSON envelope. Validation
// and credential failures stay at transport status 200 per the observed API
// convention; authorization and lookup failures map to their conventional
// status codes. Anything unrecognized is an infrastructure fault.
func RespondError(w http.ResponseWriter, err error) {
	if verrs, ok := shared.AsValidationErrors(err); ok {
		ValidationFailed(w, verrs)
		return
	}
	switch {
	case errors.Is(err, shared.ErrMissingCredentials):
		Error(w, http.StatusOK, "Email and password are required")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusOK, "Invalid email or password")
	case errors.Is(err, shared.ErrMalformedAuthHeader):
		Error(w, http.StatusUnauthorized, "Invalid Authorization header")
	case errors.Is(err, shared.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, "Invalid access token")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "User not found")
	default:
		Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
