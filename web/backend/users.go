package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/access"
)

// User mirrors an account record of the API. Role is kept as received; a
// value outside the known set makes every action on the record denied.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt Timestamp `json:"created_at"`
}

func (u User) Target() access.Target {
	return access.Target{Username: u.Username, Role: access.Role(u.Role)}
}

// RoleKnown reports whether the record's role is one the panel understands.
func (u User) RoleKnown() bool {
	return access.Role(u.Role).Valid()
}

func (a *Adapter) ListUsers(ctx context.Context) ([]User, error) {
	if err := a.authorize(access.ListUsers, "listing users"); err != nil {
		return nil, err
	}
	var out []User
	err := a.doJSON(ctx, request{endpoint: "auth.users", method: http.MethodGet, path: "/auth/users"}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddUser creates an account. Only superadmins may add users.
func (a *Adapter) AddUser(ctx context.Context, username, password, role string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", validationError("username", "username is required")
	}
	if password == "" {
		return "", validationError("password", "password is required")
	}
	r, ok := access.ParseRole(role)
	if !ok {
		return "", validationError("role", "role must be one of read_only, admin, superadmin")
	}
	if err := a.authorize(access.AddUser, "adding users"); err != nil {
		return "", err
	}

	req, err := jsonRequest("auth.add_user", http.MethodPost, "/auth/add-user", map[string]string{
		"username": username,
		"password": password,
		"role":     string(r),
	})
	if err != nil {
		return "", err
	}
	var out MessageResponse
	if err := a.doJSON(ctx, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// DeleteUser removes target after the access policy allowed it. A denied
// deletion never reaches the network.
func (a *Adapter) DeleteUser(ctx context.Context, target access.Target) (string, error) {
	if strings.TrimSpace(target.Username) == "" {
		return "", validationError("username", "username is required")
	}
	snap := a.store.Current()
	if !snap.Authenticated() {
		return "", notLoggedIn()
	}
	if !access.CanDelete(snap.Caller(), target) {
		metrics.PolicyDenials.WithLabelValues(string(access.ActionDelete)).Inc()
		return "", denied("deleting " + target.Username)
	}
	var out MessageResponse
	err := a.doJSON(ctx, request{
		endpoint: "auth.delete_user",
		method:   http.MethodDelete,
		path:     "/auth/delete-user/" + url.PathEscape(target.Username),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// ResetPassword sets a new password for target after the access policy
// allowed it.
func (a *Adapter) ResetPassword(ctx context.Context, target access.Target, newPassword string) (string, error) {
	if strings.TrimSpace(target.Username) == "" {
		return "", validationError("username", "username is required")
	}
	if newPassword == "" {
		return "", validationError("new_password", "new password is required")
	}
	snap := a.store.Current()
	if !snap.Authenticated() {
		return "", notLoggedIn()
	}
	if !access.CanResetPassword(snap.Caller(), target) {
		metrics.PolicyDenials.WithLabelValues(string(access.ActionResetPassword)).Inc()
		return "", denied("resetting the password of " + target.Username)
	}
	req, err := jsonRequest("auth.reset_password", http.MethodPost,
		"/auth/reset-password/"+url.PathEscape(target.Username),
		map[string]string{"new_password": newPassword})
	if err != nil {
		return "", err
	}
	var out MessageResponse
	if err := a.doJSON(ctx, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
