package enums

// Role is the closed set of account roles carried in access tokens.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSpaceOwner Role = "espaco"
	RoleEndUser    Role = "usuario"
)

var validRoles = []Role{
	RoleAdmin,
	RoleSpaceOwner,
	RoleEndUser,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return oneOf(r, validRoles)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parseOneOf("role", value, validRoles)
}
