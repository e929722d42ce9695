// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The integer _id that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"strings"
	"time"
)

// User represents a registered user of the host site.
//
// The ninja protocol only reads users; it never changes any field here.
// Per-user protocol data lives in the user_meta collection (see UserMeta).
type User struct {
	ID          int64  `bson:"_id" json:"id"`
	LoginID     string `bson:"login_id" json:"login_id"`       // lowercase
	LoginIDCI   string `bson:"login_id_ci" json:"login_id_ci"` // folded for case/diacritic-insensitive matching
	Email       string `bson:"email" json:"email"`
	DisplayName string `bson:"display_name" json:"display_name"`

	Roles []string `bson:"roles" json:"roles"`

	PasswordHash *string `bson:"password_hash,omitempty" json:"-"` // bcrypt hash (never in JSON)

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RoleList returns the user's role names joined for display.
func (u User) RoleList() string {
	return strings.Join(u.Roles, ", ")
}

// HasCapability reports whether any of the user's roles grants cap.
func (u User) HasCapability(cap string) bool {
	for _, r := range u.Roles {
		if RoleHasCapability(r, cap) {
			return true
		}
	}
	return false
}
