package types

import "github.com/priyamehta/platetrack-backend/pkg/enums"

// Actor identifies who is performing an operation. Stations self-identify
// through request headers; there are no accounts.
type Actor struct {
	Name      string
	Role      enums.ActorRole
	StationID *string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}
