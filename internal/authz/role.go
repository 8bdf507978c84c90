package authz

// Role is one of a closed set of role tags. The grant table below is the
// contract; resolution never string-matches partial role names.
type Role string

const (
	RoleTenantOwner  Role = "TENANT_OWNER"
	RoleTenantAdmin  Role = "TENANT_ADMIN"
	RoleTenantViewer Role = "TENANT_VIEWER"

	RoleWorkspaceLead   Role = "WORKSPACE_LEAD"
	RoleWorkspaceAdmin  Role = "WORKSPACE_ADMIN"
	RoleWorkspaceMember Role = "WORKSPACE_MEMBER"

	RoleTeamLead        Role = "TEAM_LEAD"
	RoleTeamContributor Role = "TEAM_CONTRIBUTOR"
	RoleTeamViewer      Role = "TEAM_VIEWER"
)

// grant enumerates the capabilities a role carries at its scope.
type grant struct {
	view        bool
	create      bool
	edit        bool
	delete_     bool
	publish     bool
	contribute  bool
	bypassLock  bool
	manageUsers bool
}

var grants = map[Role]grant{
	RoleTenantOwner:  {view: true, create: true, edit: true, delete_: true, publish: true, contribute: true, bypassLock: true, manageUsers: true},
	RoleTenantAdmin:  {view: true, create: true, edit: true, delete_: true, publish: true, contribute: true, bypassLock: true, manageUsers: true},
	RoleTenantViewer: {view: true},

	RoleWorkspaceLead:   {view: true, create: true, edit: true, delete_: true, publish: true, contribute: true, manageUsers: true},
	RoleWorkspaceAdmin:  {view: true, create: true, edit: true, contribute: true, manageUsers: true},
	RoleWorkspaceMember: {view: true, contribute: true},

	RoleTeamLead:        {view: true, create: true, edit: true, delete_: true, contribute: true, manageUsers: true},
	RoleTeamContributor: {view: true, contribute: true},
	RoleTeamViewer:      {view: true},
}

// ScopeType returns the tier the role is defined at.
func (r Role) ScopeType() ScopeType {
	switch r {
	case RoleTenantOwner, RoleTenantAdmin, RoleTenantViewer:
		return ScopeTenant
	case RoleWorkspaceLead, RoleWorkspaceAdmin, RoleWorkspaceMember:
		return ScopeWorkspace
	case RoleTeamLead, RoleTeamContributor, RoleTeamViewer:
		return ScopeTeam
	}
	return ""
}

// Valid reports whether r is one of the known role tags.
func (r Role) Valid() bool {
	_, ok := grants[r]
	return ok
}

// Allows reports whether the role carries the given action at its scope.
// ActionManagePlatformUsers is never granted through a role assignment.
func (r Role) Allows(action Action) bool {
	g, ok := grants[r]
	if !ok {
		return false
	}
	switch action {
	case ActionView:
		return g.view
	case ActionCreate:
		return g.create
	case ActionEdit:
		return g.edit
	case ActionDelete:
		return g.delete_
	case ActionPublish:
		return g.publish
	case ActionContribute:
		return g.contribute
	case ActionManageUsers:
		return g.manageUsers
	}
	return false
}

// BypassesCycleLock reports whether the role may mutate resources inside a
// LOCKED cycle.
func (r Role) BypassesCycleLock() bool {
	return grants[r].bypassLock
}

// adminTier reports whether the role is a tenant-level admin-tier role.
// Admin-tier roles imply every workspace/team action inside their tenant and
// see PRIVATE records regardless of whitelist.
func (r Role) adminTier() bool {
	return r == RoleTenantOwner || r == RoleTenantAdmin
}
