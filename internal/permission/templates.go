package permission

// Recognized role names. RoleSuperAdmin and RoleUser are irrevocable: they
// can never be stripped from the system.
const (
	RoleSuperAdmin       = "super_admin"
	RoleAdmin            = "admin"
	RoleModerator        = "moderator"
	RoleUser             = "user"
	RoleFinancialManager = "financial_manager"
	RoleSocialManager    = "social_manager"
	RoleFamilyElders     = "family_elders"
)

func fullAccess(e Entity) EntityPermission {
	return EntityPermission{Entity: e, View: true, Create: true, Update: true, Delete: true}
}

// DefaultTemplates returns the built-in role presets used to seed the
// role_templates table. The "user" template is the fallback for unknown or
// absent roles.
func DefaultTemplates() map[string]Set {
	superAdmin := make(Set, 0, len(Entities()))
	for _, e := range Entities() {
		superAdmin = append(superAdmin, fullAccess(e))
	}

	return map[string]Set{
		RoleSuperAdmin: superAdmin,
		RoleUser:       NewSet(),
		RoleFinancialManager: Set{
			fullAccess(EntityFinancial),
		},
		RoleSocialManager: Set{
			fullAccess(EntityEvent),
			fullAccess(EntityAlbum),
			fullAccess(EntityAdvertisement),
		},
		RoleFamilyElders: Set{
			{Entity: EntityFinancial, View: true},
		},
	}
}
