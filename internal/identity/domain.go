// Package identity owns the user account record and its credential
// primitives: persistence, password hashing, and opaque token issuance.
package identity

import "time"

// DefaultImage is the profile image assigned to accounts without an upload.
const DefaultImage = "/images/profile/sample.jpg"

// DefaultLanguage is the locale assigned at registration.
const DefaultLanguage = "en"

// User represents a persisted user account. PasswordHash and AuthKey are
// secrets and never serialized to callers. AccessToken is empty until issued.
type User struct {
	ID           int64
	Name         string
	Email        string
	Language     string
	Image        string
	PasswordHash string
	AuthKey      string
	AccessToken  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileImage returns the stored image path or the default sample asset.
func (u *User) ProfileImage() string {
	if u.Image == "" {
		return DefaultImage
	}
	return u.Image
}
