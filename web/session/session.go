package session

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Keys of the session cookie. Nothing outside this file reads them.
const (
	keySessionID = "sid"

	noticeKey  = "notice"
	contextKey = "antarex/session"
)

// CookiePersister keeps the session record in Records under an id carried
// by the request's gin-contrib session. The cookie holds nothing but that
// id and pending notices.
type CookiePersister struct {
	s       sessions.Session
	records Records
}

func NewCookiePersister(c *gin.Context, records Records) *CookiePersister {
	return &CookiePersister{s: sessions.Default(c), records: records}
}

func (p *CookiePersister) id() string {
	id, _ := p.s.Get(keySessionID).(string)
	return id
}

func (p *CookiePersister) Load() (Record, error) {
	id := p.id()
	if id == "" {
		return Record{}, nil
	}
	r, _, err := p.records.Get(id)
	return r, err
}

// Save writes the record under the cookie's id, minting one for a browser
// that has none. The id stays the same across logins, so a response that
// was already in flight can never point the browser at an older record.
func (p *CookiePersister) Save(r Record) error {
	id := p.id()
	if id == "" {
		id = uuid.NewString()
		p.s.Set(keySessionID, id)
	}
	if err := p.records.Put(id, r); err != nil {
		return err
	}
	return p.s.Save()
}

// Erase removes the record but keeps the id and pending notices.
func (p *CookiePersister) Erase() error {
	id := p.id()
	if id == "" {
		return nil
	}
	return p.records.Delete(id)
}

func (p *CookiePersister) EraseGeneration(generation uint64) (bool, error) {
	id := p.id()
	if id == "" {
		return false, nil
	}
	return p.records.DeleteIf(id, generation)
}

func (p *CookiePersister) AddNotice(kind string) {
	p.s.AddFlash(kind, noticeKey)
	_ = p.s.Save()
}

// Middleware binds a Store to each request, backed by records and the
// request's session cookie. It must run after sessions.Sessions.
func Middleware(gens *Generations, records Records) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, NewStore(NewCookiePersister(c, records), gens))
		c.Next()
	}
}

// FromContext returns the request's Store. Without Middleware it returns an
// empty store, so callers see an unauthenticated session.
func FromContext(c *gin.Context) *Store {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(*Store); ok {
			return s
		}
	}
	return NewStore(NewMemoryPersister(Record{}), nil)
}

// AddNotice queues a notice for the next rendered page.
func AddNotice(c *gin.Context, kind string) {
	s := sessions.Default(c)
	s.AddFlash(kind, noticeKey)
	_ = s.Save()
}

// TakeNotices drains the queued notices.
func TakeNotices(c *gin.Context) []string {
	s := sessions.Default(c)
	flashes := s.Flashes(noticeKey)
	if len(flashes) == 0 {
		return nil
	}
	_ = s.Save()
	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if kind, ok := f.(string); ok {
			out = append(out, kind)
		}
	}
	return out
}
