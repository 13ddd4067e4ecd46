package access

// Action names a user-management operation subject to per-target decisions.
type Action string

const (
	ActionDelete        Action = "delete"
	ActionResetPassword Action = "reset_password"
)

// Decision is the outcome of Decide for one caller/target pair.
type Decision struct {
	Delete        bool
	ResetPassword bool
	// SelfService is true when the target is the caller's own account. It only
	// changes how the reset action is labelled.
	SelfService bool
}

// CanDelete allows only superadmins, and never on a superadmin account.
func CanDelete(c Caller, t Target) bool {
	if !wellFormed(c, t) {
		return false
	}
	return c.Role == Superadmin && t.Role != Superadmin
}

// CanResetPassword allows superadmins on any account. Admins may reset
// read_only accounts and their own account, but not another admin's.
func CanResetPassword(c Caller, t Target) bool {
	if !wellFormed(c, t) {
		return false
	}
	switch c.Role {
	case Superadmin:
		return true
	case Admin:
		return t.Role == ReadOnly || (t.Role == Admin && t.Username == c.Username)
	default:
		return false
	}
}

// IsSelfService reports whether the target is the caller's own account.
func IsSelfService(c Caller, t Target) bool {
	return c.Username != "" && c.Username == t.Username
}

// Allowed answers a single action.
func Allowed(c Caller, t Target, a Action) bool {
	switch a {
	case ActionDelete:
		return CanDelete(c, t)
	case ActionResetPassword:
		return CanResetPassword(c, t)
	}
	return false
}

// Decide evaluates every per-target action for one row of the user list.
func Decide(c Caller, t Target) Decision {
	return Decision{
		Delete:        CanDelete(c, t),
		ResetPassword: CanResetPassword(c, t),
		SelfService:   IsSelfService(c, t),
	}
}

// ResetLabelKey returns the translation key for the reset action.
func (d Decision) ResetLabelKey() string {
	if d.SelfService {
		return "pages.users.changeMyPassword"
	}
	return "pages.users.resetPassword"
}
