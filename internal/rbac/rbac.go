package rbac

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleApprover Role = "approver"
	RoleEditor   Role = "editor"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionApprove Action = "approve"
	ActionAdmin   Action = "admin"
)

// Can maps roles to permitted actions. Editors draft and submit letters
// but cannot sign; approvers sign but do not manage templates or users.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleApprover:
		return action == ActionRead || action == ActionApprove
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleApprover, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
