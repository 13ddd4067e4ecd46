package session

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	NoticeSessionExpired = "sessionExpired"
	NoticeForbidden      = "forbidden"
	NoticeLoggedOut      = "loggedOut"
)

// Record is the persisted form of a session.
type Record struct {
	Token         string
	Role          string
	Username      string
	Generation    uint64
	EstablishedAt int64
	ExpiresAt     int64
}

func (r Record) IsZero() bool {
	return r == Record{}
}

// Persister is the durable storage behind a Store. Save and Erase must have
// completed when they return.
type Persister interface {
	Load() (Record, error)
	Save(Record) error
	Erase() error
}

// GenerationEraser is implemented by persisters that can erase the stored
// record only while it still carries a given generation. Store.Expire uses
// it so that a rejection seen for an older login cannot end a newer one that
// another request has persisted meanwhile.
type GenerationEraser interface {
	EraseGeneration(generation uint64) (bool, error)
}

// Noticer is implemented by persisters that can carry one-shot notices to
// the next page the user sees.
type Noticer interface {
	AddNotice(kind string)
}

// Generations hands out increasing session generations. Seeding from the
// clock keeps values increasing across restarts of the panel.
type Generations struct {
	last *atomic.Uint64
}

func NewGenerations() *Generations {
	return &Generations{last: atomic.NewUint64(uint64(time.Now().UnixNano()))}
}

func (g *Generations) Next() uint64 {
	return g.last.Inc()
}

var defaultGenerations = NewGenerations()

// MemoryPersister keeps the record in memory. It backs stores that are not
// tied to a browser, such as tests and command-line tooling.
type MemoryPersister struct {
	mu      sync.Mutex
	rec     Record
	notices []string

	// SaveErr, when set, is returned by Save without storing anything.
	SaveErr error
}

func NewMemoryPersister(initial Record) *MemoryPersister {
	return &MemoryPersister{rec: initial}
}

func (m *MemoryPersister) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

func (m *MemoryPersister) Save(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.rec = r
	return nil
}

func (m *MemoryPersister) Erase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	return nil
}

func (m *MemoryPersister) EraseGeneration(generation uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec.Generation != generation {
		return false, nil
	}
	m.rec = Record{}
	return true, nil
}

func (m *MemoryPersister) AddNotice(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, kind)
}

// Notices drains the recorded notices.
func (m *MemoryPersister) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}
