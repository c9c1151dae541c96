package authz

// ModuleIAM scopes the engine's own administrative surface.
const ModuleIAM = "iam"

// Administrative permissions for the engine itself. Seeded at startup.
var (
	PermRolesView       = MustKey(ModuleIAM, "roles", "view")
	PermRolesManage     = MustKey(ModuleIAM, "roles", "manage")
	PermPrincipalsView  = MustKey(ModuleIAM, "principals", "view")
	PermPrincipalsEdit  = MustKey(ModuleIAM, "principals", "edit")
	PermModulesManage   = MustKey(ModuleIAM, "modules", "manage")
	PermPermissionsView = MustKey(ModuleIAM, "permissions", "view")
	PermAuditView       = MustKey(ModuleIAM, "audit", "view")
)

// IAMScopes lists every administrative permission of the engine.
func IAMScopes() []PermissionKey {
	return []PermissionKey{
		PermRolesView,
		PermRolesManage,
		PermPrincipalsView,
		PermPrincipalsEdit,
		PermModulesManage,
		PermPermissionsView,
		PermAuditView,
	}
}
