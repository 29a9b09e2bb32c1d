package domain

import "strings"

// Unknown is the placeholder used for every identity attribute the caller could not prove.
const Unknown = "Unknown"

// Role is the caller's bookstore role, taken from the custom:role claim.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RolePublisher
	RoleCustomer
)

// String returns the role entity id used in authorization requests.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RolePublisher:
		return "Publisher"
	case RoleCustomer:
		return "Customer"
	default:
		return Unknown
	}
}

// ParseRole maps a role claim to a Role. Both the singular role names and the
// plural user pool group names are accepted; anything else is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.TrimSpace(s) {
	case "Admin", "Admins":
		return RoleAdmin
	case "Publisher", "Publishers":
		return RolePublisher
	case "Customer", "Customers":
		return RoleCustomer
	default:
		return RoleUnknown
	}
}

// Identity is the normalized view of a caller, independent of how the
// credential was encoded. Build it with NewIdentity or UnknownIdentity.
type Identity struct {
	Username string
	Role     Role
	Region   string

	tenure    int
	hasTenure bool
}

// NewIdentity builds an identity. A nil tenure means the membership tenure is unknown.
// An empty username or region is replaced by Unknown.
func NewIdentity(username string, role Role, tenure *int, region string) Identity {
	id := Identity{
		Username: username,
		Role:     role,
		Region:   region,
	}
	if id.Username == "" {
		id.Username = Unknown
	}
	if id.Region == "" {
		id.Region = Unknown
	}
	if tenure != nil {
		id.tenure = *tenure
		id.hasTenure = true
	}
	return id
}

// UnknownIdentity is the identity of a caller without a usable credential.
func UnknownIdentity() Identity {
	return NewIdentity(Unknown, RoleUnknown, nil, Unknown)
}

// MembershipTenure returns the caller's membership tenure in years, if known.
func (id Identity) MembershipTenure() (int, bool) {
	return id.tenure, id.hasTenure
}

// IsUnknown reports whether the identity carries no proven role.
func (id Identity) IsUnknown() bool {
	return id.Role == RoleUnknown
}
