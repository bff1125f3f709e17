package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The same error covers
	// an unknown email and a wrong password so that responses do not reveal
	// which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials occurs when email or password is absent from a login request.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrForbidden indicates an authenticated caller lacking a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or unresolvable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedAuthHeader occurs when the Authorization header carries no bearer scheme.
	ErrMalformedAuthHeader = errors.New("malformed authorization header")
)

// ValidationErrors maps a field name to the first failing rule's message
// for that field.
type ValidationErrors map[string]string

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// AsValidationErrors unwraps err into ValidationErrors when possible.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
