// hall/registry.go
package hall

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
)

var (
	ErrHallNotFound     = errors.New("tournament hall not found")
	ErrAnonymous        = errors.New("hall join requires an identified user")
	ErrNotJoinable      = errors.New("tournament is not joinable")
	ErrTournamentFull   = errors.New("tournament is full")
	ErrAlreadyStarted   = errors.New("tournament already started")
	ErrNotOrganizer     = errors.New("caller is not the organizer")
	ErrSelfKick         = errors.New("organizer cannot kick themselves")
	ErrNotEnoughPlayers = errors.New("need at least two live participants")
)

// Registry 持有所有赛事大厅
type Registry struct {
	halls map[string]*Hall
	mutex sync.RWMutex

	broadcaster Broadcaster
	store       TournamentStore
	duels       DuelCreator
}

func NewRegistry(store TournamentStore, duels DuelCreator) *Registry {
	return &Registry{
		halls: make(map[string]*Hall),
		store: store,
		duels: duels,
	}
}

// SetBroadcaster injects the send surface; same two-step wiring as the
// duel registry.
func (reg *Registry) SetBroadcaster(b Broadcaster) {
	reg.broadcaster = b
}

// CreateHall opens the live presence list for a newly created tournament.
func (reg *Registry) CreateHall(tournamentID, organizerID string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	if _, exists := reg.halls[tournamentID]; exists {
		return
	}
	reg.halls[tournamentID] = newHall(tournamentID, organizerID)
}

// Get 获取一个大厅
func (reg *Registry) Get(tournamentID string) (*Hall, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	hall, exists := reg.halls[tournamentID]
	return hall, exists
}

// Count returns the number of live halls.
func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.halls)
}

// Join registers the caller's presence and returns the tournament's detail
// snapshot. Latest join wins when a user id is already present on another
// connection.
func (reg *Registry) Join(tournamentID, sessionID, userID, name string) (*models.Tournament, error) {
	if userID == "" {
		return nil, ErrAnonymous
	}
	hall, exists := reg.Get(tournamentID)
	if !exists {
		return nil, ErrHallNotFound
	}

	t, err := reg.store.GetTournament(tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.Joinable() {
		return nil, ErrNotJoinable
	}

	has, err := reg.store.HasParticipation(tournamentID, userID)
	if err != nil {
		return nil, err
	}
	if !has {
		if t.Status != models.TournamentPending {
			// Latecomers cannot enter a running tournament.
			return nil, ErrAlreadyStarted
		}
		count, err := reg.store.CountActiveParticipants(tournamentID)
		if err != nil {
			return nil, err
		}
		if t.MaxParticipants > 0 && count >= t.MaxParticipants {
			return nil, ErrTournamentFull
		}
	}
	if err := reg.store.CreateOrReactivateParticipation(tournamentID, userID); err != nil {
		return nil, err
	}

	userRating, err := reg.store.GetUserRating(userID)
	if err != nil {
		logger.Log.Warnf("Rating lookup failed for %s: %v", userID, err)
		userRating = models.DefaultRating
	}

	hall.mutex.Lock()
	hall.participants[userID] = &Participant{
		SessionID: sessionID,
		UserID:    userID,
		Name:      name,
		Rating:    userRating,
	}
	reg.sendTo(excludeSession(hall.sessionIDs(), sessionID), network.MsgTypeUserJoinedHall, network.HallUserEvent{
		TournamentID: tournamentID, UserID: userID, Name: name, Rating: userRating,
	})
	reg.send(sessionID, network.MsgTypeHallSnapshot, network.HallSnapshotEvent{
		Tournament: t, Participants: hall.views(),
	})
	hall.mutex.Unlock()

	return t, nil
}

// Kick removes a participant from the hall and deactivates their
// participation record. Returns the kicked connection's session id so the
// caller can unbind it from the hall. Organizer only; self-kick rejected.
func (reg *Registry) Kick(tournamentID, callerUserID, targetUserID string) (string, error) {
	hall, exists := reg.Get(tournamentID)
	if !exists {
		return "", ErrHallNotFound
	}
	if callerUserID != hall.OrganizerID {
		return "", ErrNotOrganizer
	}
	if targetUserID == callerUserID {
		return "", ErrSelfKick
	}

	hall.mutex.Lock()
	target, present := hall.participants[targetUserID]
	if present {
		delete(hall.participants, targetUserID)
	}
	remaining := hall.sessionIDs()
	hall.mutex.Unlock()

	if err := reg.store.DeactivateParticipation(tournamentID, targetUserID); err != nil {
		logger.Log.Errorf("Deactivating participation of %s in %s failed: %v", targetUserID, tournamentID, err)
	}

	targetSessionID := ""
	if present {
		targetSessionID = target.SessionID
		reg.send(targetSessionID, network.MsgTypeKicked, network.KickedEvent{TournamentID: tournamentID})
	}
	reg.sendTo(remaining, network.MsgTypeUserLeftHall, network.HallUserEvent{
		TournamentID: tournamentID, UserID: targetUserID,
	})
	return targetSessionID, nil
}

// StartRound pairs the live participants into fresh duels. Each paired
// participant gets a private invitation; joining the issued duel stays a
// participant-initiated call. An odd participant out gets a bye.
func (reg *Registry) StartRound(tournamentID, callerUserID string) error {
	hall, exists := reg.Get(tournamentID)
	if !exists {
		return ErrHallNotFound
	}
	if callerUserID != hall.OrganizerID {
		return ErrNotOrganizer
	}

	t, err := reg.store.GetTournament(tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.TournamentPending && t.Status != models.TournamentActive {
		return ErrNotJoinable
	}

	hall.mutex.Lock()
	pool := make([]*Participant, 0, len(hall.participants))
	for _, p := range hall.participants {
		pool = append(pool, p)
	}
	everyone := hall.sessionIDs()
	hall.mutex.Unlock()

	if len(pool) < 2 {
		return ErrNotEnoughPlayers
	}

	if t.Status == models.TournamentPending {
		if err := reg.store.SetTournamentStatus(tournamentID, models.TournamentActive); err != nil {
			return err
		}
		reg.sendTo(everyone, network.MsgTypeStatusChanged, network.StatusChangedEvent{
			TournamentID: tournamentID, Status: models.TournamentActive,
		})
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	for len(pool) >= 2 {
		p1, p2 := pool[0], pool[1]
		pool = pool[2:]

		duelID := reg.duels.CreateTournamentDuel(tournamentID)
		reg.send(p1.SessionID, network.MsgTypeDuelInvitation, network.DuelInvitationEvent{
			TournamentID: tournamentID, DuelID: duelID, OpponentID: p2.UserID, OpponentName: p2.Name,
		})
		reg.send(p2.SessionID, network.MsgTypeDuelInvitation, network.DuelInvitationEvent{
			TournamentID: tournamentID, DuelID: duelID, OpponentID: p1.UserID, OpponentName: p1.Name,
		})
		reg.sendTo(everyone, network.MsgTypeNewDuel, network.NewDuelEvent{
			TournamentID: tournamentID, DuelID: duelID, User1Name: p1.Name, User2Name: p2.Name,
		})
	}
	if len(pool) == 1 {
		reg.send(pool[0].SessionID, network.MsgTypeBye, network.ByeEvent{TournamentID: tournamentID})
	}
	return nil
}

// HandleDisconnect drops the participant bound to this connection from the
// presence list. The stored participation record is left untouched: a
// disconnect changes presence, not tournament standing.
func (reg *Registry) HandleDisconnect(tournamentID, sessionID string) {
	hall, exists := reg.Get(tournamentID)
	if !exists {
		return
	}

	hall.mutex.Lock()
	var leftUserID string
	for userID, p := range hall.participants {
		if p.SessionID == sessionID {
			leftUserID = userID
			delete(hall.participants, userID)
			break
		}
	}
	remaining := hall.sessionIDs()
	hall.mutex.Unlock()

	if leftUserID == "" {
		return
	}
	reg.sendTo(remaining, network.MsgTypeUserLeftHall, network.HallUserEvent{
		TournamentID: tournamentID, UserID: leftUserID,
	})
}

// SessionIDs returns every live connection in the hall.
func (reg *Registry) SessionIDs(tournamentID string) []string {
	hall, exists := reg.Get(tournamentID)
	if !exists {
		return nil
	}
	hall.mutex.Lock()
	defer hall.mutex.Unlock()
	return hall.sessionIDs()
}

func (reg *Registry) send(sessionID string, msgID uint16, payload interface{}) {
	if reg.broadcaster == nil {
		return
	}
	data, _ := json.Marshal(payload)
	if err := reg.broadcaster.SendToSession(sessionID, msgID, data); err != nil {
		logger.Log.Debugf("Send to session %s failed: %v", sessionID, err)
	}
}

func (reg *Registry) sendTo(sessionIDs []string, msgID uint16, payload interface{}) {
	if reg.broadcaster == nil || len(sessionIDs) == 0 {
		return
	}
	data, _ := json.Marshal(payload)
	if err := reg.broadcaster.SendToSessions(sessionIDs, msgID, data); err != nil {
		logger.Log.Debugf("Fan-out failed: %v", err)
	}
}

func excludeSession(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
