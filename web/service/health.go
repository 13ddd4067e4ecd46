package service

import (
	"context"
	"errors"
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/session"

	"go.uber.org/atomic"
)

// HealthStatus is the last probe result of the API.
type HealthStatus struct {
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// HealthService probes the API's liveness endpoint and remembers the result.
type HealthService struct {
	adapter *backend.Adapter
	baseURL string
	last    atomic.Value
}

func NewHealthService(client *backend.Client) *HealthService {
	// The probe is anonymous, so it runs on a private empty session.
	store := session.NewStore(session.NewMemoryPersister(session.Record{}), nil)
	return &HealthService{adapter: client.Bind(store), baseURL: client.BaseURL()}
}

// Check probes the API once. It logs only when the state changes.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	err := s.adapter.Health(ctx)
	st := HealthStatus{Up: err == nil, CheckedAt: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}

	prev, seen := s.last.Load().(HealthStatus)
	s.last.Store(st)
	if st.Up {
		metrics.BackendUp.Set(1)
	} else {
		metrics.BackendUp.Set(0)
	}

	switch {
	case !seen && !st.Up, seen && prev.Up && !st.Up:
		var be *backend.Error
		if errors.As(err, &be) && !be.Retryable() {
			logger.Errorf("backend %s rejected the health probe: %s", s.baseURL, st.Error)
		} else {
			logger.Warningf("backend %s is unreachable: %s", s.baseURL, st.Error)
		}
	case seen && !prev.Up && st.Up:
		logger.Infof("backend %s is reachable again", s.baseURL)
	}
	return st
}

// Status returns the last result. ok is false before the first check.
func (s *HealthService) Status() (st HealthStatus, ok bool) {
	st, ok = s.last.Load().(HealthStatus)
	return st, ok
}
