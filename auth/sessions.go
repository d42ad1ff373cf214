package auth

import (
	"context"
	"sync"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

// SessionStore keeps the chat-side state of each user in memory. A session is
// created on first access with the role resolved at that moment, and expires
// after ttl without activity.
type SessionStore struct {
	sessions map[int64]*models.Session
	mutex    sync.RWMutex
	roles    *RoleResolver
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(roles *RoleResolver, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		sessions: make(map[int64]*models.Session),
		roles:    roles,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the user's session, creating it if needed.
func (s *SessionStore) Get(userID int64) models.Session {
	return s.Update(userID, func(*models.Session) {})
}

// Update applies fn to the user's session under the store lock and returns
// the resulting copy. Access extends the expiry.
func (s *SessionStore) Update(userID int64, fn func(sess *models.Session)) models.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	session, exists := s.sessions[userID]
	if !exists || now.After(session.ExpiresAt) {
		session = &models.Session{
			UserID:    userID,
			Role:      s.roles.Resolve(userID),
			CreatedAt: now,
		}
		s.sessions[userID] = session
	}
	session.ExpiresAt = now.Add(s.ttl)

	fn(session)
	return cloneSession(session)
}

// Peek returns the session without creating or extending it.
func (s *SessionStore) Peek(userID int64) (models.Session, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[userID]
	if !exists || s.now().After(session.ExpiresAt) {
		return models.Session{}, false
	}
	return cloneSession(session), true
}

// StartRun marks a /today run active with the given queue. It returns false
// if a run is already active.
func (s *SessionStore) StartRun(userID int64, queue []int) bool {
	started := false
	s.Update(userID, func(sess *models.Session) {
		if sess.Active {
			return
		}
		sess.Active = true
		sess.Queue = append([]int(nil), queue...)
		started = true
	})
	return started
}

// PopQuestion removes and returns the next queued question id.
func (s *SessionStore) PopQuestion(userID int64) (int, bool) {
	var (
		id int
		ok bool
	)
	s.Update(userID, func(sess *models.Session) {
		if len(sess.Queue) == 0 {
			return
		}
		id, ok = sess.Queue[0], true
		sess.Queue = sess.Queue[1:]
	})
	return id, ok
}

// EndRun clears the active flag and any queued questions.
func (s *SessionStore) EndRun(userID int64) {
	s.Update(userID, func(sess *models.Session) {
		sess.Active = false
		sess.Queue = nil
	})
}

func (s *SessionStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// CleanupExpired removes expired sessions and returns how many were dropped.
func (s *SessionStore) CleanupExpired() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	cleaned := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		utils.LogInfo("Cleaned up %d expired chat sessions", cleaned)
	}
	return cleaned
}

// Run cleans up expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.LogShutdown("Session cleanup stopped")
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}

func cloneSession(s *models.Session) models.Session {
	c := *s
	c.Queue = append([]int(nil), s.Queue...)
	return c
}
