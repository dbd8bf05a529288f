package enums

import "fmt"

// ActorRole is the coarse two-role distinction passed in by the caller.
type ActorRole string

const (
	ActorRoleVolunteer ActorRole = "volunteer"
	ActorRoleAdmin     ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleVolunteer,
	ActorRoleAdmin,
}

// IsValid reports whether the value matches a known actor role.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries admin privileges.
func (r ActorRole) IsAdmin() bool {
	return r == ActorRoleAdmin
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
