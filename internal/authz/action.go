package authz

// Action is a capability an endpoint declares before its business logic runs.
type Action string

const (
	// ActionView covers detail fetches, listings, counts and exports.
	ActionView Action = "view"
	// ActionCreate covers creating objectives, key results and initiatives.
	ActionCreate Action = "create"
	// ActionEdit covers updating fields on an existing resource.
	ActionEdit Action = "edit"
	// ActionDelete covers removing a resource.
	ActionDelete Action = "delete"
	// ActionPublish covers moving a resource from DRAFT to PUBLISHED.
	ActionPublish Action = "publish"
	// ActionContribute covers check-ins and updates to key results the
	// principal owns. It is narrower than ActionEdit.
	ActionContribute Action = "contribute"
	// ActionManageUsers covers granting and revoking role assignments at a
	// tenant, workspace or team scope.
	ActionManageUsers Action = "manage_users"
	// ActionManagePlatformUsers covers platform-operator user management.
	// It is the one mutation a superuser may perform.
	ActionManagePlatformUsers Action = "manage_platform_users"
)

// Mutation reports whether the action changes state. Mutations pass through
// the governance guard and the mutation rate limiter; reads never do.
func (a Action) Mutation() bool {
	switch a {
	case ActionCreate, ActionEdit, ActionDelete, ActionPublish, ActionContribute, ActionManageUsers, ActionManagePlatformUsers:
		return true
	}
	return false
}

// Read reports whether the action is read-class.
func (a Action) Read() bool {
	return a == ActionView
}
