package auth

// Permission is a named capability.
type Permission string

// Permissions checked by the API.
const (
	PermRecordRead  Permission = "record:read"
	PermRecordWrite Permission = "record:write"
	PermAuditRead   Permission = "audit:read"
)

var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermRecordRead, PermAuditRead},
	RoleOperator: {PermRecordRead, PermRecordWrite, PermAuditRead},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
