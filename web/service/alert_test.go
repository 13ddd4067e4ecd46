package service

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/backend/backendtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertAt(verdict backend.Verdict, at time.Time) backend.Alert {
	return backend.Alert{Filename: "a.pdf", Verdict: verdict, CreatedAt: backend.Timestamp{Time: at}}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	s := Summarize([]backend.Alert{
		alertAt(backend.VerdictRealAttack, now),
		alertAt(backend.VerdictRealAttack, now),
		alertAt(backend.VerdictLegitTraffic, now),
		alertAt(backend.VerdictSuspicious, now),
		alertAt("", now),
		alertAt(backend.VerdictPending, now),
	})
	assert.Equal(t, Summary{Total: 6, RealAttacks: 2, LegitTraffic: 1, Suspicious: 1, Pending: 2}, s)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestAggregateDailyGroupsByDayInZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	alerts := []backend.Alert{
		// 2025-03-14 20:00 UTC is already the 15th in Tokyo.
		alertAt(backend.VerdictRealAttack, time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)),
		alertAt(backend.VerdictLegitTraffic, time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC)),
		alertAt(backend.VerdictPending, time.Date(2025, 3, 13, 1, 0, 0, 0, time.UTC)),
		alertAt(backend.VerdictRealAttack, time.Time{}),
	}

	got := AggregateDaily(alerts, tokyo)
	assert.Equal(t, []DailyBucket{
		{Date: "2025-03-13", Total: 1},
		{Date: "2025-03-15", Total: 2, RealAttacks: 1, LegitTraffic: 1},
	}, got)

	utc := AggregateDaily(alerts, time.UTC)
	require.Len(t, utc, 3)
	assert.Equal(t, "2025-03-13", utc[0].Date)
	assert.Equal(t, "2025-03-14", utc[1].Date)
	assert.Equal(t, "2025-03-15", utc[2].Date)
}

func TestAggregateDailyEmpty(t *testing.T) {
	assert.Empty(t, AggregateDaily(nil, nil))
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	f.api.AddAlert("one.pdf", "Real Attack", "91%", day)
	f.api.AddAlert("two.pdf", "", "", day.Add(24*time.Hour))
	f.login(t, "viewer", backendtest.ViewerPassword)

	svc := NewAlertService(time.UTC)
	ov, err := svc.Overview(f.ctx, f.adapter)
	require.NoError(t, err)
	assert.Len(t, ov.Alerts, 2)
	assert.Equal(t, Summary{Total: 2, RealAttacks: 1, Pending: 1}, ov.Summary)
	require.Len(t, ov.Daily, 2)
	assert.Equal(t, "2025-03-14", ov.Daily[0].Date)
}

func TestOverviewRequiresSession(t *testing.T) {
	f := newFixture(t)
	_, err := NewAlertService(time.UTC).Overview(f.ctx, f.adapter)
	assert.ErrorIs(t, err, backend.ErrAuthentication)
	assert.Zero(t, f.api.TotalCalls())
}

func TestUploadAndBulkUpdateAreAudited(t *testing.T) {
	withDB(t)
	f := newFixture(t)
	f.login(t, "admin", backendtest.AdminPassword)
	svc := NewAlertService(time.UTC)

	res, err := svc.Upload(f.ctx, f.adapter, []backend.UploadFile{
		{Name: "report.pdf", Content: bytes.NewReader([]byte("%PDF-1.4"))},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf"}, res.Files)

	bulk, err := svc.BulkUpdate(f.ctx, f.adapter, backend.BulkUpdate{Verdict: backend.VerdictLegitTraffic})
	require.NoError(t, err)
	assert.Equal(t, backend.VerdictLegitTraffic, bulk.Verdict)

	audit := AuditService{}
	logs, err := audit.List(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "alerts.bulk_update", logs[0].Action)
	assert.Equal(t, "pending", logs[0].Target)
	assert.Equal(t, "alerts.upload", logs[1].Action)
	assert.Equal(t, "report.pdf", logs[1].Target)
	assert.Equal(t, "admin", logs[1].Username)
	assert.Equal(t, "203.0.113.7", logs[1].IP)
	assert.Equal(t, OutcomeOK, logs[1].Outcome)
}

func TestViewerCannotExport(t *testing.T) {
	withDB(t)
	f := newFixture(t)
	f.login(t, "viewer", backendtest.ViewerPassword)
	calls := f.api.TotalCalls()

	_, err := NewAlertService(time.UTC).ExportCSV(f.ctx, f.adapter)
	assert.ErrorIs(t, err, backend.ErrAuthorization)
	assert.Equal(t, calls, f.api.TotalCalls())

	logs, err := (&AuditService{}).List(1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, OutcomeDenied, logs[0].Outcome)
}

func TestDownloadStreamsFile(t *testing.T) {
	f := newFixture(t)
	f.api.AddAlert("one.pdf", "Real Attack", "91%", time.Now())
	f.login(t, "superadmin", backendtest.SuperadminPassword)

	blob, err := NewAlertService(nil).Download(f.ctx, f.adapter, "one.pdf")
	require.NoError(t, err)
	defer blob.Body.Close()
	body, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "one.pdf")
}

func TestJoinLimited(t *testing.T) {
	assert.Equal(t, "a, b", joinLimited([]string{"a", "b"}, 5))
	assert.Equal(t, "a, b and 2 more", joinLimited([]string{"a", "b", "c", "d"}, 2))
}
