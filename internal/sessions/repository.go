package sessions

import "sync"

// Repository holds sessions. Implementations must treat every write as a
// whole-record replacement and hand out copies, never shared pointers.
type Repository interface {
	// Put stores s, replacing any session with the same thread id.
	// It returns the replaced session, if any.
	Put(s *Session) (replaced *Session)
	Get(id string) (*Session, bool)
	GetByThread(threadID string) (*Session, bool)
	List() []*Session
	// Update applies fn to a copy of the session and stores the copy when fn
	// returns true. The read-modify-write is atomic with respect to other writers.
	Update(id string, fn func(s *Session) bool) (*Session, bool)
}

// MemoryRepository is the single-process Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byThread map[string]string
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*Session),
		byThread: make(map[string]string),
	}
}

func (r *MemoryRepository) Put(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced *Session
	if oldID, ok := r.byThread[s.ThreadID]; ok {
		replaced = r.byID[oldID]
		delete(r.byID, oldID)
	}
	r.byID[s.ID] = s.Clone()
	r.byThread[s.ThreadID] = s.ID
	return replaced
}

func (r *MemoryRepository) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (r *MemoryRepository) GetByThread(threadID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byThread[threadID]
	if !ok {
		return nil, false
	}
	return r.byID[id].Clone(), true
}

func (r *MemoryRepository) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s.Clone())
	}
	return out
}

func (r *MemoryRepository) Update(id string, fn func(s *Session) bool) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	next := cur.Clone()
	if !fn(next) {
		return nil, false
	}
	r.byID[id] = next
	return next.Clone(), true
}
