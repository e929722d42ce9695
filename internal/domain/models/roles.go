package models

import "strings"

// User roles
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// Capabilities
const (
	// CapManageOptions gates the ninja protocol admin page.
	CapManageOptions = "manage_options"
	CapListUsers     = "list_users"
	CapEditPosts     = "edit_posts"
	CapRead          = "read"
)

var roleCapabilities = map[string][]string{
	RoleAdministrator: {CapManageOptions, CapListUsers, CapEditPosts, CapRead},
	RoleEditor:        {CapEditPosts, CapRead},
	RoleAuthor:        {CapEditPosts, CapRead},
	RoleContributor:   {CapEditPosts, CapRead},
	RoleSubscriber:    {CapRead},
}

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{
		RoleAdministrator,
		RoleEditor,
		RoleAuthor,
		RoleContributor,
		RoleSubscriber,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	_, ok := roleCapabilities[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// RoleHasCapability reports whether role grants cap.
// Unknown roles grant nothing.
func RoleHasCapability(role, cap string) bool {
	for _, c := range roleCapabilities[strings.ToLower(strings.TrimSpace(role))] {
		if c == cap {
			return true
		}
	}
	return false
}
