package main

import (
	"slices"
	"strings"
	"sync"

	"neonrange/server/internal/game"
)

// sessionRegistry tracks live player connections by session and by authenticated subject.
type sessionRegistry struct {
	mu        sync.RWMutex
	byID      map[string]*playerConn
	bySubject map[string]*playerConn
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		//1.- Index sessions for admin lookups and spectators.
		byID: make(map[string]*playerConn),
		//2.- Index subjects so a reconnecting player replaces the stale session.
		bySubject: make(map[string]*playerConn),
	}
}

// Add stores the connection and returns the session it displaced for the same subject.
func (r *sessionRegistry) Add(conn *playerConn) *playerConn {
	if r == nil || conn == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[conn.id] = conn
	subject := strings.TrimSpace(conn.subject)
	if subject == "" {
		return nil
	}
	replaced := r.bySubject[subject]
	r.bySubject[subject] = conn
	if replaced == conn {
		return nil
	}
	return replaced
}

// Remove forgets the connection. Entries already taken over by a newer session stay.
func (r *sessionRegistry) Remove(conn *playerConn) {
	if r == nil || conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.byID[conn.id]; ok && current == conn {
		delete(r.byID, conn.id)
	}
	subject := strings.TrimSpace(conn.subject)
	if current, ok := r.bySubject[subject]; ok && current == conn {
		delete(r.bySubject, subject)
	}
}

func (r *sessionRegistry) Get(id string) (*playerConn, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[strings.TrimSpace(id)]
	return conn, ok
}

func (r *sessionRegistry) BySubject(subject string) (*playerConn, bool) {
	if r == nil || strings.TrimSpace(subject) == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.bySubject[strings.TrimSpace(subject)]
	return conn, ok
}

func (r *sessionRegistry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// All returns a snapshot of the live connections.
func (r *sessionRegistry) All() []*playerConn {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	conns := make([]*playerConn, 0, len(r.byID))
	for _, conn := range r.byID {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()
	return conns
}

// Summaries lists live sessions, best score first.
func (r *sessionRegistry) Summaries() []game.Summary {
	conns := r.All()
	summaries := make([]game.Summary, 0, len(conns))
	for _, conn := range conns {
		summaries = append(summaries, conn.session.Summary())
	}
	slices.SortFunc(summaries, func(a, b game.Summary) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return summaries
}
