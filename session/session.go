// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/duelserver/network"
)

// Session 一条连接的会话。DuelID/HallID 记录该连接当前加入的房间/大厅，
// 断线时据此归因弃权或移除。
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string // empty = anonymous
	Name       string
	DuelID     string
	HallID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Identify binds the opaque user identity to this connection.
func (s *Session) Identify(userID, name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
	s.Name = name
}

// Identity returns the bound user id and display name.
func (s *Session) Identity() (string, string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID, s.Name
}

func (s *Session) SetDuel(duelID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.DuelID = duelID
}

func (s *Session) SetHall(hallID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.HallID = hallID
}

// Rooms returns the duel and hall this session last joined.
func (s *Session) Rooms() (duelID, hallID string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.DuelID, s.HallID
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
}

// IdleSince reports whether the session saw no traffic for at least d.
func (s *Session) IdleSince(d time.Duration) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.LastActive) >= d
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if uid, _ := session.Identity(); uid == userID {
			result = append(result, session)
		}
	}
	return result
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Idle returns sessions with no traffic for at least d.
func (m *Manager) Idle(d time.Duration) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.IdleSince(d) {
			result = append(result, session)
		}
	}
	return result
}
