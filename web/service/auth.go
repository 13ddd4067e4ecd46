package service

import (
	"context"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/session"
)

// AuthService runs the login, logout and password flows of the panel.
type AuthService struct {
	audit AuditService
}

func (s *AuthService) Login(ctx context.Context, a *backend.Adapter, username, password string) (session.Snapshot, error) {
	snap, err := a.Login(ctx, username, password)
	origin := OriginFrom(ctx)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(OutcomeOf(err)).Inc()
		logger.Warningf("failed login of %q from %s: %v", username, origin.IP, err)
		s.audit.Record(ctx, session.Snapshot{Username: username}, "auth.login", username, err)
		return session.Snapshot{}, err
	}
	metrics.LoginAttempts.WithLabelValues(OutcomeOK).Inc()
	logger.Infof("%s logged in as %s from %s", snap.Username, snap.Role, origin.IP)
	s.audit.Record(ctx, snap, "auth.login", snap.Username, nil)
	return snap, nil
}

// Logout clears the session. Logging out without a session is not an error.
func (s *AuthService) Logout(ctx context.Context, a *backend.Adapter) error {
	snap := a.Session().Current()
	if err := a.Logout(); err != nil {
		return err
	}
	if snap.Authenticated() {
		logger.Infof("%s logged out", snap.Username)
		s.audit.Record(ctx, snap, "auth.logout", snap.Username, nil)
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, a *backend.Adapter, oldPassword, newPassword string) (string, error) {
	snap := a.Session().Current()
	msg, err := a.ChangePassword(ctx, oldPassword, newPassword)
	s.audit.Record(ctx, snap, "auth.change_password", snap.Username, err)
	return msg, err
}
