// Package model holds the gorm models of the panel's local database.
package model

import "time"

// AuditLog is one attempted privileged action made through the panel.
type AuditLog struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"index"`
	Role      string    `json:"role"`
	Action    string    `json:"action" gorm:"index"`
	Target    string    `json:"target"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// Session is a browser's login, keyed by the id in its session cookie.
type Session struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Token         string    `gorm:"not null"`
	Role          string    `gorm:"not null"`
	Username      string    `gorm:"index"`
	Generation    uint64    `gorm:"not null"`
	EstablishedAt int64
	ExpiresAt     int64
	UpdatedAt     time.Time `gorm:"index"`
}
