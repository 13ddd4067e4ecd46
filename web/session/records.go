package session

import (
	"sync"
	"time"

	"github.com/antarex-ai/dashboard/database/model"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Records keeps session records on the server, keyed by the id the browser
// cookie carries.
type Records interface {
	Get(id string) (Record, bool, error)
	Put(id string, r Record) error
	Delete(id string) error
	// DeleteIf removes the record only while it still carries generation and
	// reports whether it did.
	DeleteIf(id string, generation uint64) (bool, error)
}

// GormRecords stores sessions in the panel database, so they survive a
// restart.
type GormRecords struct {
	db *gorm.DB
}

func NewGormRecords(db *gorm.DB) *GormRecords {
	return &GormRecords{db: db}
}

func (g *GormRecords) Get(id string) (Record, bool, error) {
	var rows []model.Session
	if err := g.db.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return Record{}, false, err
	}
	if len(rows) == 0 {
		return Record{}, false, nil
	}
	row := rows[0]
	return Record{
		Token:         row.Token,
		Role:          row.Role,
		Username:      row.Username,
		Generation:    row.Generation,
		EstablishedAt: row.EstablishedAt,
		ExpiresAt:     row.ExpiresAt,
	}, true, nil
}

func (g *GormRecords) Put(id string, r Record) error {
	row := model.Session{
		ID:            id,
		Token:         r.Token,
		Role:          r.Role,
		Username:      r.Username,
		Generation:    r.Generation,
		EstablishedAt: r.EstablishedAt,
		ExpiresAt:     r.ExpiresAt,
		UpdatedAt:     time.Now(),
	}
	return g.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (g *GormRecords) Delete(id string) error {
	return g.db.Where("id = ?", id).Delete(&model.Session{}).Error
}

func (g *GormRecords) DeleteIf(id string, generation uint64) (bool, error) {
	res := g.db.Where("id = ? AND generation = ?", id, generation).Delete(&model.Session{})
	return res.RowsAffected > 0, res.Error
}

// Prune deletes records last written before cutoff.
func (g *GormRecords) Prune(cutoff time.Time) (int64, error) {
	res := g.db.Where("updated_at < ?", cutoff).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}

// MemoryRecords keeps sessions in process memory. They end when the panel
// restarts. A ttl of zero keeps records until they are deleted.
type MemoryRecords struct {
	mu    sync.Mutex
	items *cache.Cache
}

func NewMemoryRecords(ttl time.Duration) *MemoryRecords {
	if ttl <= 0 {
		return &MemoryRecords{items: cache.New(cache.NoExpiration, 0)}
	}
	return &MemoryRecords{items: cache.New(ttl, ttl)}
}

func (m *MemoryRecords) Get(id string) (Record, bool, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return Record{}, false, nil
	}
	r, ok := v.(Record)
	return r, ok, nil
}

func (m *MemoryRecords) Put(id string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.SetDefault(id, r)
	return nil
}

func (m *MemoryRecords) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Delete(id)
	return nil
}

func (m *MemoryRecords) DeleteIf(id string, generation uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items.Get(id)
	if !ok {
		return false, nil
	}
	if r, ok := v.(Record); !ok || r.Generation != generation {
		return false, nil
	}
	m.items.Delete(id)
	return true, nil
}
