// Package model defines the wire types shared by the MFALite API client,
// the session store, and the CLI.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// AdminRole is the role identifier that unlocks administrative surfaces
// (user management, role management, usage stats, server status).
const AdminRole = "Admin"

// User is the identity record for an MFALite account. For the logged-in
// user it also carries the bearer token issued at login; the token is part
// of the persisted record so a restart can resume the session.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Fullname  string   `json:"fullname"`
	Roles     []string `json:"roles"`
	Token     string   `json:"token,omitempty"`
	CreatedAt int64    `json:"created_at,omitempty"` // epoch millis
	UpdatedAt int64    `json:"updated_at,omitempty"` // epoch millis
}

// IsAdmin reports whether the user holds the Admin role. It is computed
// from the role set on every call; nothing caches the answer.
func (u *User) IsAdmin() bool {
	return u.HasRole(AdminRole)
}

// HasRole reports whether the user's role set contains the given role ID.
func (u *User) HasRole(id string) bool {
	return u != nil && slices.Contains(u.Roles, id)
}

// UserUpsert is the payload for creating or updating a user account.
// The server stores only the password digest, never the raw password,
// so the digest is computed on the client with HashPassword.
type UserUpsert struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Fullname     string   `json:"fullname"`
	Roles        []string `json:"roles"`
	PasswordHash string   `json:"password_hash,omitempty"`
}

// HashPassword returns the hex-encoded SHA-256 digest of a password, the
// form the backend expects in UserUpsert.PasswordHash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
