// Package access decides which user-management actions and panel features a
// caller may use. Every function here is pure: it never errors or panics, and
// anything it cannot recognise is denied.
//
// These decisions only shape what the panel offers. The Antarex API enforces
// the same rules on its side and stays the authority.
package access

import "strings"

// Role is one of the three account roles known to the Antarex API.
type Role string

const (
	ReadOnly   Role = "read_only"
	Admin      Role = "admin"
	Superadmin Role = "superadmin"
)

// Roles lists every valid role, lowest privilege first.
var Roles = []Role{ReadOnly, Admin, Superadmin}

// ParseRole accepts exactly the wire spelling of a role. Anything else,
// including different casing or surrounding spaces, is rejected.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case ReadOnly, Admin, Superadmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Caller is the identity asking to act.
type Caller struct {
	Username string
	Role     Role
}

// Target is the account an action would apply to.
type Target struct {
	Username string
	Role     Role
}

// valid reports whether the caller carries a known role and a non-blank
// username. Anything else holds no permission at all.
func (c Caller) valid() bool {
	return c.Role.Valid() && strings.TrimSpace(c.Username) != ""
}

// wellFormed reports whether both sides carry a known role and a username.
func wellFormed(c Caller, t Target) bool {
	return c.valid() && t.Role.Valid() && strings.TrimSpace(t.Username) != ""
}
