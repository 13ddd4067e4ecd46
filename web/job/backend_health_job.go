// Package job holds the panel's scheduled background jobs.
package job

import (
	"context"
	"time"

	"github.com/antarex-ai/dashboard/util/common"
	"github.com/antarex-ai/dashboard/web/service"
)

// BackendHealthJob probes the Antarex API so /healthz and the backend_up
// gauge stay current.
type BackendHealthJob struct {
	ctx     context.Context
	health  *service.HealthService
	timeout time.Duration
}

// NewBackendHealthJob creates a probe job. Probes stop when ctx is done.
func NewBackendHealthJob(ctx context.Context, health *service.HealthService, timeout time.Duration) *BackendHealthJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendHealthJob{ctx: ctx, health: health, timeout: timeout}
}

func (j *BackendHealthJob) Run() {
	defer common.Recover("backend health job")
	if j.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()
	j.health.Check(ctx)
}
