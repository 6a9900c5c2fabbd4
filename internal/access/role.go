package access

import "strings"

// Role is the principal's assigned role, stored by its display name.
type Role string

const (
	RoleSuperUser  Role = "Super User"
	RoleUnitHead   Role = "Unit Head"
	RoleProduction Role = "Production"
	RolePacking    Role = "Packing"
	RoleDispatch   Role = "Dispatch"
	RoleSales      Role = "Sales"
	RoleAccounts   Role = "Accounts"
)

// SuperRoleToken is the reserved value of PermissionSet.Role that grants
// unconditional access.
const SuperRoleToken = "super_user"

var roles = [...]Role{
	RoleSuperUser,
	RoleUnitHead,
	RoleProduction,
	RolePacking,
	RoleDispatch,
	RoleSales,
	RoleAccounts,
}

// Roles returns the enumerated roles in administrative display order.
func Roles() []Role {
	return append([]Role(nil), roles[:]...)
}

// ParseRole accepts a role display name or its token form ("unit_head").
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range roles {
		if string(r) == s || r.Token() == s {
			return r, true
		}
	}
	return "", false
}

// Known reports whether r is one of the enumerated roles.
func (r Role) Known() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// Token returns the permission-document form of the role: lower case with
// spaces replaced by underscores.
func (r Role) Token() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(r))), " ", "_")
}

func (r Role) String() string { return string(r) }

// IsSuper reports whether the role/permission-set pair triggers the super
// override.
func IsSuper(r Role, set PermissionSet) bool {
	return r == RoleSuperUser || set.Role == SuperRoleToken
}

// Units lists the organisational units offered by the administrative forms.
func Units() []string {
	return []string{"Unit A", "Unit B", "Unit C", "Main Office"}
}
