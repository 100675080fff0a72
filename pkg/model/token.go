package model

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// Claims is the JWT payload issued at login. The identity record is
// embedded under the "user" claim.
type Claims struct {
	User *User `json:"user"`
	jwt.RegisteredClaims
}

// IdentityFromToken decodes the identity record embedded in an access
// token and attaches the raw token to it. The signature is not verified
// here: the client treats the token as an opaque credential and leaves
// verification to the server that issued it.
func IdentityFromToken(token string) (*User, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	if claims.User == nil || claims.User.ID == "" {
		return nil, fmt.Errorf("access token carries no user claim")
	}
	u := *claims.User
	u.Token = token
	return &u, nil
}
