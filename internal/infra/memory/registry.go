package memory

import (
	"strings"
	"sync"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
)

// Registry is the in-memory session table: id-based and code-based
// lookup over the set of currently active sessions. Codes are unique
// among active sessions only; removal frees a code for reuse.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]*app.Session
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*app.Session),
		byCode: make(map[string]*app.Session),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Insert adds a session, refusing code collisions with active sessions.
func (r *Registry) Insert(s *app.Session) bool {
	code := normalizeCode(s.Code())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byCode[code]; taken {
		return false
	}
	r.byID[s.ID()] = s
	r.byCode[code] = s
	return true
}

func (r *Registry) ByID(id string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) ByCode(code string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCode[normalizeCode(code)]
	return s, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byCode, normalizeCode(s.Code()))
}

// Sessions returns a snapshot of all active sessions.
func (r *Registry) Sessions() []*app.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*app.Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}
