package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antarex-ai/dashboard/database"
	"github.com/antarex-ai/dashboard/database/model"
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/session"
)

// Outcomes stored in the audit journal besides the failing error kind.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// Origin describes where a request came from.
type Origin struct {
	IP        string
	UserAgent string
}

type originKey struct{}

// WithOrigin attaches o to ctx so services can record it.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}

// AuditService keeps the panel's journal of attempted privileged actions.
// Without an open database every call is a no-op.
type AuditService struct{}

// OutcomeOf condenses the result of an action into the journal's outcome.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch kind := backend.KindOf(err); kind {
	case backend.KindAuthorization:
		return OutcomeDenied
	case 0:
		return OutcomeError
	default:
		return kind.String()
	}
}

// Record stores one entry for an action attempted by snap's user.
func (s *AuditService) Record(ctx context.Context, snap session.Snapshot, action, target string, err error) {
	db := database.GetDB()
	if db == nil {
		return
	}
	origin := OriginFrom(ctx)
	entry := model.AuditLog{
		Username:  snap.Username,
		Role:      string(snap.Role),
		Action:    action,
		Target:    target,
		Outcome:   OutcomeOf(err),
		IP:        origin.IP,
		UserAgent: origin.UserAgent,
		CreatedAt: time.Now(),
	}
	if err != nil {
		entry.Detail = backend.MessageOf(err)
		if entry.Detail == "" {
			entry.Detail = err.Error()
		}
	}
	// The entry is kept even when the client went away mid-request.
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error; err != nil {
		logger.Warningf("failed to write audit entry: user=%s, action=%s, error=%v", snap.Username, action, err)
	}
}

// List returns the newest entries first.
func (s *AuditService) List(limit int) ([]model.AuditLog, error) {
	db := database.GetDB()
	if db == nil {
		return nil, errors.New("database is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var logs []model.AuditLog
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// CleanOldLogs removes entries older than days and reports how many went.
func (s *AuditService) CleanOldLogs(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be greater than 0")
	}
	db := database.GetDB()
	if db == nil {
		return 0, errors.New("database is not initialized")
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := db.Where("created_at < ?", cutoff).Delete(&model.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	logger.Infof("cleaned %d old audit entries (older than %d days)", result.RowsAffected, days)
	return result.RowsAffected, nil
}
