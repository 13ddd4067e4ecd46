package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/session"
)

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TokenType   string `json:"token_type"`
}

// MessageResponse is the {"message": ...} body most mutations answer with.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login exchanges credentials for a token and establishes the session. A
// response with a missing token or a role outside the known set is treated
// as a failed login and leaves the current session untouched.
func (a *Adapter) Login(ctx context.Context, username, password string) (session.Snapshot, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return session.Snapshot{}, validationError("username", "username is required")
	}
	if password == "" {
		return session.Snapshot{}, validationError("password", "password is required")
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var out loginResponse
	err := a.doJSON(ctx, request{
		endpoint:    "auth.login",
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		anonymous:   true,
	}, &out)
	if err != nil {
		return session.Snapshot{}, err
	}
	if out.TokenType != "" && !strings.EqualFold(out.TokenType, "bearer") {
		return session.Snapshot{}, a.record("auth.login", &Error{
			Kind:    KindAuthentication,
			Message: "the server issued an unsupported credential",
		})
	}

	snap, err := a.store.Establish(out.AccessToken, out.Role, username)
	if err != nil {
		var invalid *session.InvalidSessionError
		if errors.As(err, &invalid) {
			logger.Warningf("login of %s rejected: %v", username, err)
			return session.Snapshot{}, &Error{
				Kind:    KindAuthentication,
				Message: "the server returned an unusable login response",
				Err:     err,
			}
		}
		return session.Snapshot{}, &Error{Kind: KindTransport, Message: "could not store the session, try again", Err: err}
	}
	return snap, nil
}

// Logout ends the session locally; the API keeps no server-side session.
func (a *Adapter) Logout() error {
	return a.store.Clear()
}

// ChangePassword changes the logged-in user's own password.
func (a *Adapter) ChangePassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	if oldPassword == "" {
		return "", validationError("old_password", "current password is required")
	}
	if newPassword == "" {
		return "", validationError("new_password", "new password is required")
	}
	if err := a.authorize(access.ChangeOwnPassword, "changing the password"); err != nil {
		return "", err
	}
	r, err := jsonRequest("auth.change_password", http.MethodPost, "/auth/change-password", map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	})
	if err != nil {
		return "", err
	}
	var out MessageResponse
	if err := a.doJSON(ctx, r, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Health probes the API's liveness endpoint. It needs no session.
func (a *Adapter) Health(ctx context.Context) error {
	return a.doJSON(ctx, request{
		endpoint:  "healthz",
		method:    http.MethodGet,
		path:      "/healthz",
		anonymous: true,
	}, nil)
}
