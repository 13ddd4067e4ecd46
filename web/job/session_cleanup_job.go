package job

import (
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/common"
)

// SessionPruner deletes stored sessions last written before a cutoff.
type SessionPruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// SessionCleanupJob drops stored sessions whose cookie has outlived its
// max age.
type SessionCleanupJob struct {
	records SessionPruner
	maxAge  time.Duration
}

func NewSessionCleanupJob(records SessionPruner, maxAge time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{records: records, maxAge: maxAge}
}

func (j *SessionCleanupJob) Run() {
	defer common.Recover("session cleanup job")

	n, err := j.records.Prune(time.Now().Add(-j.maxAge))
	if err != nil {
		logger.Warning("Failed to prune stored sessions:", err)
		return
	}
	if n > 0 {
		logger.Debugf("Pruned %d stale sessions", n)
	}
}
