package procore

import "time"

// Credential is the bearer token produced by the authorization-code flow.
// It is never persisted and never refreshed: once the API rejects it the
// user has to log in again.
type Credential struct {
	AccessToken string
	IssuedAt    time.Time
}

// Valid reports whether the credential carries a token at all. It says
// nothing about expiry, which is only discovered when a request gets a 401.
func (c Credential) Valid() bool {
	return c.AccessToken != ""
}

// String redacts the token so a Credential can be logged safely.
func (c Credential) String() string {
	if !c.Valid() {
		return "Credential(empty)"
	}

	return "Credential(issued " + c.IssuedAt.UTC().Format(time.RFC3339) + ")"
}
