package rbac

type Role string
type Action string

const (
	RoleViewer  Role = "viewer"
	RoleMember  Role = "member"
	RolePlanner Role = "planner"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionEdit  Action = "edit" // songs and lyrics
	ActionPlan  Action = "plan" // services and set lists
	ActionLead  Action = "lead" // reassign the live session leader
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RolePlanner:
		return action == ActionRead || action == ActionEdit || action == ActionPlan || action == ActionLead
	case RoleMember:
		return action == ActionRead || action == ActionEdit
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RolePlanner, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
