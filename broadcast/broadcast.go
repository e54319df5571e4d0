// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/duelserver/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Broadcaster 面向连接的发送接口。房间成员名单由各注册表在自己的锁下解析，
// 这里只做扇出。
type Broadcaster interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
	SendToSessions(sessionIDs []string, msgID uint16, data []byte) error
	SendToUser(userID string, msgID uint16, data []byte) error
}

// SessionBroadcaster 基于会话管理器的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.Send(msgID, data)
}

// SendToSessions delivers to every listed session. Dead connections are
// skipped; the read loop's disconnect path cleans them up.
func (b *SessionBroadcaster) SendToSessions(sessionIDs []string, msgID uint16, data []byte) error {
	for _, id := range sessionIDs {
		s, exists := b.sessionManager.Get(id)
		if !exists {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

// SendToUser delivers to every live connection bound to the user id.
func (b *SessionBroadcaster) SendToUser(userID string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByUserID(userID) {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
