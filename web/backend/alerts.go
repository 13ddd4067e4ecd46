package backend

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antarex-ai/dashboard/web/access"

	"github.com/goccy/go-json"
)

type Verdict string

const (
	VerdictRealAttack   Verdict = "Real Attack"
	VerdictLegitTraffic Verdict = "Legit Traffic"
	VerdictSuspicious   Verdict = "Suspicious"
	VerdictPending      Verdict = "Pending"
)

var Verdicts = []Verdict{VerdictRealAttack, VerdictLegitTraffic, VerdictSuspicious, VerdictPending}

func ParseVerdict(s string) (Verdict, bool) {
	for _, v := range Verdicts {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Normalized maps an empty verdict, which the API uses for unclassified
// alerts, to Pending.
func (v Verdict) Normalized() Verdict {
	if strings.TrimSpace(string(v)) == "" {
		return VerdictPending
	}
	return v
}

// Timestamp decodes the API's ISO-8601 times. Values without a zone are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Confidence is shown as received. The API sends strings like "87%", but
// numbers are accepted too.
type Confidence string

func (c *Confidence) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Confidence(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = Confidence(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type Alert struct {
	Filename   string     `json:"filename"`
	Verdict    Verdict    `json:"verdict"`
	Confidence Confidence `json:"confidence"`
	CreatedAt  Timestamp  `json:"created_at"`
}

type alertList struct {
	Count  int     `json:"count"`
	Alerts []Alert `json:"alerts"`
}

// ListAlerts returns the most recent alerts as ordered by the API.
func (a *Adapter) ListAlerts(ctx context.Context) ([]Alert, error) {
	if err := a.authorize(access.ViewDashboard, "viewing alerts"); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := a.doJSON(ctx, request{endpoint: "alerts.list", method: http.MethodGet, path: "/alerts"}, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var alerts []Alert
	var err error
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &alerts)
	} else {
		var list alertList
		err = json.Unmarshal(raw, &list)
		alerts = list.Alerts
	}
	if err != nil {
		return nil, a.record("alerts.list", &Error{Kind: KindTransport, Message: "the server sent an unreadable alert list", Err: err})
	}
	for i := range alerts {
		alerts[i].Verdict = alerts[i].Verdict.Normalized()
	}
	return alerts, nil
}

// BulkScope selects which alerts a bulk update touches.
type BulkScope string

const (
	ScopePending   BulkScope = "pending"
	ScopeAll       BulkScope = "all"
	ScopeFilenames BulkScope = "filenames"
)

type BulkUpdate struct {
	Scope      BulkScope `json:"scope"`
	Filenames  []string  `json:"filenames,omitempty"`
	Verdict    Verdict   `json:"verdict"`
	Confidence string    `json:"confidence,omitempty"`
}

type BulkResult struct {
	Updated    int     `json:"updated"`
	Verdict    Verdict `json:"verdict"`
	Confidence string  `json:"confidence"`
}

// Validate checks the request as the API would, so bad input never leaves
// the panel.
func (b BulkUpdate) Validate() error {
	if _, ok := ParseVerdict(string(b.Verdict)); !ok {
		return validationError("verdict", "unknown verdict")
	}
	switch b.Scope {
	case ScopePending, ScopeAll:
	case ScopeFilenames:
		if len(b.Filenames) == 0 {
			return validationError("filenames", "select at least one alert")
		}
	default:
		return validationError("scope", "unknown scope")
	}
	return nil
}

// BulkUpdateVerdicts overrides the verdict of many alerts at once.
func (a *Adapter) BulkUpdateVerdicts(ctx context.Context, b BulkUpdate) (BulkResult, error) {
	if b.Scope == "" {
		b.Scope = ScopePending
	}
	if err := b.Validate(); err != nil {
		return BulkResult{}, err
	}
	if err := a.authorize(access.UpdateVerdicts, "updating verdicts"); err != nil {
		return BulkResult{}, err
	}
	if b.Scope != ScopeFilenames {
		b.Filenames = nil
	}
	r, err := jsonRequest("alerts.bulk_update", http.MethodPost, "/alerts/bulk-update", b)
	if err != nil {
		return BulkResult{}, err
	}
	var out BulkResult
	if err := a.doJSON(ctx, r, &out); err != nil {
		return BulkResult{}, err
	}
	return out, nil
}
