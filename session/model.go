package session

import "errors"

// ErrStoreUnavailable is returned when the underlying key-value store fails.
var ErrStoreUnavailable = errors.New("token store unavailable")

// ErrInvalidCredential is returned when either token of a pair is empty.
var ErrInvalidCredential = errors.New("invalid credential: access and refresh tokens are required")

// ErrSuperseded is returned by the epoch-conditional writes when the stored credential
// was replaced or cleared after the caller captured its epoch.
var ErrSuperseded = errors.New("credential superseded")

// Credential is the access/refresh token pair held by a [Store].
//
// A Credential is always replaced as a whole; the store never updates one field
// without the other.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Empty reports whether neither token is present.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
