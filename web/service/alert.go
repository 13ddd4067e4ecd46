package service

import (
	"context"
	"sort"
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/backend"
)

// Summary counts alerts by verdict.
type Summary struct {
	Total        int `json:"total"`
	RealAttacks  int `json:"realAttacks"`
	LegitTraffic int `json:"legitTraffic"`
	Suspicious   int `json:"suspicious"`
	Pending      int `json:"pending"`
}

// DailyBucket counts the alerts created on one calendar day.
type DailyBucket struct {
	Date         string `json:"date"`
	Total        int    `json:"total"`
	RealAttacks  int    `json:"realAttacks"`
	LegitTraffic int    `json:"legitTraffic"`
}

// AlertOverview is what the dashboard renders.
type AlertOverview struct {
	Alerts  []backend.Alert `json:"alerts"`
	Summary Summary         `json:"summary"`
	Daily   []DailyBucket   `json:"daily"`
}

const dayLayout = "2006-01-02"

func Summarize(alerts []backend.Alert) Summary {
	s := Summary{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Verdict.Normalized() {
		case backend.VerdictRealAttack:
			s.RealAttacks++
		case backend.VerdictLegitTraffic:
			s.LegitTraffic++
		case backend.VerdictSuspicious:
			s.Suspicious++
		case backend.VerdictPending:
			s.Pending++
		}
	}
	return s
}

// AggregateDaily groups alerts by their creation day in loc, oldest day
// first. Alerts without a creation time are left out.
func AggregateDaily(alerts []backend.Alert, loc *time.Location) []DailyBucket {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[string]*DailyBucket)
	for _, a := range alerts {
		if a.CreatedAt.IsZero() {
			continue
		}
		day := a.CreatedAt.In(loc).Format(dayLayout)
		b, ok := byDay[day]
		if !ok {
			b = &DailyBucket{Date: day}
			byDay[day] = b
		}
		b.Total++
		switch a.Verdict.Normalized() {
		case backend.VerdictRealAttack:
			b.RealAttacks++
		case backend.VerdictLegitTraffic:
			b.LegitTraffic++
		}
	}
	out := make([]DailyBucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	// ISO dates sort lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AlertService wraps alert operations of the API for the panel.
type AlertService struct {
	audit AuditService
	loc   *time.Location
}

func NewAlertService(loc *time.Location) *AlertService {
	return &AlertService{loc: loc}
}

func (s *AlertService) Overview(ctx context.Context, a *backend.Adapter) (AlertOverview, error) {
	alerts, err := a.ListAlerts(ctx)
	if err != nil {
		return AlertOverview{}, err
	}
	return AlertOverview{
		Alerts:  alerts,
		Summary: Summarize(alerts),
		Daily:   AggregateDaily(alerts, s.loc),
	}, nil
}

func (s *AlertService) Upload(ctx context.Context, a *backend.Adapter, files []backend.UploadFile) (backend.UploadResult, error) {
	snap := a.Session().Current()
	res, err := a.Upload(ctx, files)
	s.audit.Record(ctx, snap, "alerts.upload", uploadTarget(files), err)
	if err != nil {
		return res, err
	}
	logger.Infof("%s uploaded %d alert(s)", snap.Username, len(res.Files))
	return res, nil
}

func uploadTarget(files []backend.UploadFile) string {
	if len(files) == 1 {
		return files[0].Name
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return joinLimited(names, 5)
}

func (s *AlertService) Download(ctx context.Context, a *backend.Adapter, filename string) (*backend.Blob, error) {
	return a.Download(ctx, filename)
}

func (s *AlertService) ExportCSV(ctx context.Context, a *backend.Adapter) (*backend.Blob, error) {
	snap := a.Session().Current()
	blob, err := a.ExportCSV(ctx)
	s.audit.Record(ctx, snap, "alerts.export", "csv", err)
	return blob, err
}

func (s *AlertService) BulkUpdate(ctx context.Context, a *backend.Adapter, req backend.BulkUpdate) (backend.BulkResult, error) {
	snap := a.Session().Current()
	if req.Scope == "" {
		req.Scope = backend.ScopePending
	}
	res, err := a.BulkUpdateVerdicts(ctx, req)
	target := string(req.Scope)
	if req.Scope == backend.ScopeFilenames {
		target = joinLimited(req.Filenames, 5)
	}
	s.audit.Record(ctx, snap, "alerts.bulk_update", target, err)
	if err != nil {
		return res, err
	}
	logger.Infof("%s set %d alert(s) to %q", snap.Username, res.Updated, res.Verdict)
	return res, nil
}
