package model

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of a PhotoFlow access token. The web client only
// decodes it; the backend is the one that verifies signatures.
type Claims struct {
	Email        string       `json:"email"`
	TenantID     string       `json:"tenantId"`
	PlatformRole PlatformRole `json:"platformRole"`
	TenantRole   string       `json:"tenantRole,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}
