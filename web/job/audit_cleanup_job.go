package job

import (
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/common"
	"github.com/antarex-ai/dashboard/web/service"
)

// AuditCleanupJob prunes the audit journal to its retention window.
type AuditCleanupJob struct {
	auditService  service.AuditService
	retentionDays int
}

func NewAuditCleanupJob(retentionDays int) *AuditCleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &AuditCleanupJob{retentionDays: retentionDays}
}

func (j *AuditCleanupJob) Run() {
	defer common.Recover("audit cleanup job")
	logger.Debug("Audit cleanup job started")

	if _, err := j.auditService.CleanOldLogs(j.retentionDays); err != nil {
		logger.Warning("Failed to clean old audit entries:", err)
		return
	}
	logger.Debugf("Audit cleanup completed (retention: %d days)", j.retentionDays)
}
