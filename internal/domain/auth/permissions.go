package auth

import "sort"

const (
	PermDocumentsRead    = "hrdocs.read"
	PermDocumentsManage  = "hrdocs.manage"
	PermDocumentsUpload  = "hrdocs.upload"
	PermDocumentsApprove = "hrdocs.approve"
	PermDocumentsImport  = "hrdocs.import"
	PermDocumentsShare   = "hrdocs.share"
	PermAuditRead        = "audit.read"
	PermSystemAdmin      = "admin.system"
)

var DefaultPermissions = []string{
	PermDocumentsRead,
	PermDocumentsManage,
	PermDocumentsUpload,
	PermDocumentsApprove,
	PermDocumentsImport,
	PermDocumentsShare,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermDocumentsRead,
		PermDocumentsUpload,
	},
	RoleManager: {
		PermDocumentsRead,
		PermDocumentsUpload,
		PermDocumentsShare,
	},
	RoleHR: {
		PermDocumentsRead,
		PermDocumentsManage,
		PermDocumentsUpload,
		PermDocumentsApprove,
		PermDocumentsImport,
		PermDocumentsShare,
		PermAuditRead,
	},
	RoleSystemAdmin: DefaultPermissions,
}

type PermissionSet map[string]struct{}

// Capabilities resolves the permission set for a role name. Unknown roles get an empty set.
func Capabilities(roleName string) PermissionSet {
	set := PermissionSet{}
	for _, perm := range RolePermissions[roleName] {
		set[perm] = struct{}{}
	}
	return set
}

func (p PermissionSet) Has(permission string) bool {
	_, ok := p[permission]
	return ok
}

func (p PermissionSet) List() []string {
	out := make([]string, 0, len(p))
	for perm := range p {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}
