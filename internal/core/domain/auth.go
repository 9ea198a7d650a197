package domain

import "errors"

// ErrTokenExpired indicates a bearer token is past its expiry
var ErrTokenExpired = errors.New("token expired")

// TokenClaims is the payload of an API bearer token
type TokenClaims struct {
	// Subject identifies the caller, usually a service or analyst name
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthContext is attached to authenticated requests
type AuthContext struct {
	Subject string `json:"subject"`
}
