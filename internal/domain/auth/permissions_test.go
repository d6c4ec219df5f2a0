package auth

import "testing"

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		role  string
		perm  string
		allow bool
	}{
		{role: RoleHR, perm: PermDocumentsApprove, allow: true},
		{role: RoleHR, perm: PermDocumentsImport, allow: true},
		{role: RoleEmployee, perm: PermDocumentsUpload, allow: true},
		{role: RoleEmployee, perm: PermDocumentsApprove, allow: false},
		{role: RoleManager, perm: PermDocumentsShare, allow: true},
		{role: RoleManager, perm: PermDocumentsManage, allow: false},
		{role: RoleSystemAdmin, perm: PermDocumentsImport, allow: true},
		{role: "unknown", perm: PermDocumentsRead, allow: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.role+"/"+tc.perm, func(t *testing.T) {
			if got := Capabilities(tc.role).Has(tc.perm); got != tc.allow {
				t.Fatalf("Capabilities(%q).Has(%q) = %v, want %v", tc.role, tc.perm, got, tc.allow)
			}
		})
	}
}

func TestPermissionSetListSorted(t *testing.T) {
	list := Capabilities(RoleEmployee).List()
	if len(list) != 2 || list[0] != PermDocumentsRead || list[1] != PermDocumentsUpload {
		t.Fatalf("unexpected list %v", list)
	}
}
