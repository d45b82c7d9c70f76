package models

import "time"

// Role names, ordered weakest to strongest.
const (
	RoleViewer = "viewer"
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// ValidRoles contains all valid role names.
var ValidRoles = []string{RoleViewer, RoleMember, RoleAdmin}

// IsValidRole checks if the given role name is valid.
func IsValidRole(role string) bool {
	for _, v := range ValidRoles {
		if v == role {
			return true
		}
	}
	return false
}

// roleLevels orders roles so that stronger roles satisfy weaker requirements.
var roleLevels = map[string]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
}

// RoleAtLeast returns true if role grants at least the capabilities of
// required. Unknown roles satisfy nothing.
func RoleAtLeast(role, required string) bool {
	return roleLevels[role] >= roleLevels[required] && roleLevels[role] > 0
}

// Group is an organizational tenant owning samples and trees.
type Group struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Prefix              string    `json:"prefix"`
	DefaultTreeLocation string    `json:"default_tree_location,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// User is an authenticated principal. AuthSubject is the external identity
// provider's subject claim; group membership lives in UserRole rows.
type User struct {
	ID          int64     `json:"id"`
	AuthSubject string    `json:"auth_subject"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	SystemAdmin bool      `json:"system_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserRole grants a user a role within one group. A user may hold roles in
// multiple groups.
type UserRole struct {
	UserID  int64  `json:"user_id"`
	GroupID int64  `json:"group_id"`
	Role    string `json:"role"`
}

// GroupRole grants members of the grantee group a role over the grantor
// group's data (typically viewer).
type GroupRole struct {
	GrantorGroupID int64  `json:"grantor_group_id"`
	GranteeGroupID int64  `json:"grantee_group_id"`
	Role           string `json:"role"`
}

// UserContext is the authorization view of a user assembled per request:
// the user row plus the roles they hold per group.
type UserContext struct {
	UserID      int64           `json:"user_id"`
	AuthSubject string          `json:"auth_subject"`
	SystemAdmin bool            `json:"system_admin"`
	GroupRoles  map[int64]string `json:"group_roles"`
}

// GroupIDs returns the ids of every group the user holds any role in.
func (u *UserContext) GroupIDs() []int64 {
	ids := make([]int64, 0, len(u.GroupRoles))
	for id := range u.GroupRoles {
		ids = append(ids, id)
	}
	return ids
}

// HasRoleInGroup returns true if the user holds at least the required role
// in the given group.
func (u *UserContext) HasRoleInGroup(groupID int64, required string) bool {
	return RoleAtLeast(u.GroupRoles[groupID], required)
}
