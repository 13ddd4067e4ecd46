package service

import (
	"context"
	"net/http"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
)

// UserRow is one account on the manage-users page together with what the
// current user may do to it.
type UserRow struct {
	backend.User
	Decision  access.Decision `json:"decision"`
	RoleKnown bool            `json:"roleKnown"`
	// ResetLabel is the translation key of the reset action.
	ResetLabel string `json:"resetLabel"`
}

// UserAdminService manages API accounts. Targets are always resolved from a
// fresh listing, never from what the browser claims about them.
type UserAdminService struct {
	audit AuditService
}

func (s *UserAdminService) List(ctx context.Context, a *backend.Adapter) ([]UserRow, error) {
	users, err := a.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	caller := a.Session().Current().Caller()
	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		d := access.Decide(caller, u.Target())
		rows = append(rows, UserRow{
			User:       u,
			Decision:   d,
			RoleKnown:  u.RoleKnown(),
			ResetLabel: d.ResetLabelKey(),
		})
	}
	return rows, nil
}

func (s *UserAdminService) Add(ctx context.Context, a *backend.Adapter, username, password, role string) (string, error) {
	snap := a.Session().Current()
	msg, err := a.AddUser(ctx, username, password, role)
	s.audit.Record(ctx, snap, "user.add", username+" ("+role+")", err)
	if err != nil {
		return "", err
	}
	logger.Infof("%s added user %s with role %s", snap.Username, username, role)
	return msg, nil
}

// Delete removes the account named username if the policy allows it.
func (s *UserAdminService) Delete(ctx context.Context, a *backend.Adapter, username string) (string, error) {
	snap := a.Session().Current()
	msg, err := s.delete(ctx, a, username)
	s.audit.Record(ctx, snap, "user.delete", username, err)
	if err != nil {
		return "", err
	}
	logger.Infof("%s deleted user %s", snap.Username, username)
	return msg, nil
}

func (s *UserAdminService) delete(ctx context.Context, a *backend.Adapter, username string) (string, error) {
	target, err := s.resolve(ctx, a, username, access.ActionDelete)
	if err != nil {
		return "", err
	}
	return a.DeleteUser(ctx, target)
}

// ResetPassword sets a new password on the account named username if the
// policy allows it.
func (s *UserAdminService) ResetPassword(ctx context.Context, a *backend.Adapter, username, newPassword string) (string, error) {
	snap := a.Session().Current()
	msg, err := s.resetPassword(ctx, a, username, newPassword)
	s.audit.Record(ctx, snap, "user.reset_password", username, err)
	if err != nil {
		return "", err
	}
	logger.Infof("%s reset the password of %s", snap.Username, username)
	return msg, nil
}

func (s *UserAdminService) resetPassword(ctx context.Context, a *backend.Adapter, username, newPassword string) (string, error) {
	target, err := s.resolve(ctx, a, username, access.ActionResetPassword)
	if err != nil {
		return "", err
	}
	return a.ResetPassword(ctx, target, newPassword)
}

// resolve finds the account named username in the caller's listing. Only a
// superadmin sees every account, so for anyone else a name missing from the
// listing may be an account they may not act on, and the answer is a denial.
func (s *UserAdminService) resolve(ctx context.Context, a *backend.Adapter, username string, action access.Action) (access.Target, error) {
	if username == "" {
		return access.Target{}, &backend.Error{Kind: backend.KindValidation, Field: "username", Message: "username is required"}
	}
	users, err := a.ListUsers(ctx)
	if err != nil {
		return access.Target{}, err
	}
	for _, u := range users {
		if u.Username == username {
			return u.Target(), nil
		}
	}
	if a.Session().Current().Role != access.Superadmin {
		metrics.PolicyDenials.WithLabelValues(string(action)).Inc()
		return access.Target{}, &backend.Error{Kind: backend.KindAuthorization, Message: string(action) + " on " + username + " is not permitted"}
	}
	return access.Target{}, &backend.Error{Kind: backend.KindConflict, Status: http.StatusNotFound, Message: "User not found"}
}
