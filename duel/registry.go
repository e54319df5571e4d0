// duel/registry.go
package duel

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/problems"
	"github.com/wfunc/duelserver/state"
)

var (
	ErrRoomNotFound = errors.New("duel room not found")
	ErrNotStarted   = errors.New("duel has not started")
	ErrNotSlotOwner = errors.New("caller does not own the slot")
)

// DefaultPlatform is used when a duel has no tournament problem policy.
const DefaultPlatform = "codeforces"

// Registry 持有所有进行中的对决房间
type Registry struct {
	rooms map[string]*Room
	mutex sync.RWMutex

	broadcaster  Broadcaster
	source       problems.Source
	recorder     ResultRecorder
	tournaments  TournamentInfo
	metrics      Metrics
	fetchTimeout time.Duration
}

func NewRegistry(source problems.Source, recorder ResultRecorder, tournaments TournamentInfo, fetchTimeout time.Duration) *Registry {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Registry{
		rooms:        make(map[string]*Room),
		source:       source,
		recorder:     recorder,
		tournaments:  tournaments,
		fetchTimeout: fetchTimeout,
	}
}

// SetBroadcaster injects the send surface. Must be called before any join;
// the broadcaster itself needs the session manager, hence two-step wiring.
func (reg *Registry) SetBroadcaster(b Broadcaster) {
	reg.broadcaster = b
}

// SetMetrics injects the optional counter surface.
func (reg *Registry) SetMetrics(m Metrics) {
	reg.metrics = m
}

// Get 获取一个房间
func (reg *Registry) Get(duelID string) (*Room, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	room, exists := reg.rooms[duelID]
	return room, exists
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.rooms)
}

// SessionIDs returns every connection currently in the room.
func (reg *Registry) SessionIDs(duelID string) []string {
	room, exists := reg.Get(duelID)
	if !exists {
		return nil
	}
	room.mutex.Lock()
	defer room.mutex.Unlock()
	return room.sessionIDs()
}

func (reg *Registry) getOrCreate(duelID string) *Room {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	if room, exists := reg.rooms[duelID]; exists {
		return room
	}
	room := newRoom(duelID, "")
	reg.rooms[duelID] = room
	return room
}

// CreateTournamentDuel pre-creates an empty waiting room bound to a
// tournament, so its activation later picks from the tournament's pool.
// Returns the new duel id.
func (reg *Registry) CreateTournamentDuel(tournamentID string) string {
	duelID := uuid.New().String()
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	reg.rooms[duelID] = newRoom(duelID, tournamentID)
	return duelID
}

func (reg *Registry) remove(duelID string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	delete(reg.rooms, duelID)
}

// Join assigns the caller a role in the room, creating the room on first
// contact. A caller whose user id already occupies a slot is rebound to the
// current connection and keeps its code, language and solve state.
func (reg *Registry) Join(duelID, sessionID, userID, name, code, language string) Role {
	room := reg.getOrCreate(duelID)

	room.mutex.Lock()
	defer room.mutex.Unlock()

	var role Role
	if i := room.slotByUserID(userID); i >= 0 {
		// Reconnect: rebind the slot to the new connection.
		room.competitors[i].SessionID = sessionID
		role = slotRole(i)
	} else if room.competitors[0] == nil {
		room.competitors[0] = &Competitor{SessionID: sessionID, UserID: userID, Name: name, Code: code, Language: language}
		role = RoleCompetitor1
	} else if room.competitors[1] == nil {
		room.competitors[1] = &Competitor{SessionID: sessionID, UserID: userID, Name: name, Code: code, Language: language}
		role = RoleCompetitor2
	} else {
		room.spectators[sessionID] = struct{}{}
		role = RoleSpectator
	}

	reg.send(sessionID, network.MsgTypeAssignedRole, network.AssignedRoleEvent{DuelID: duelID, Role: string(role)})
	reg.send(sessionID, network.MsgTypeRoomSnapshot, room.snapshot())
	reg.sendTo(exclude(room.sessionIDs(), sessionID), network.MsgTypeUserJoined, network.UserJoinedEvent{
		DuelID: duelID, UserID: userID, Name: name, Role: string(role),
	})

	reg.maybeActivate(room)
	return role
}

// maybeActivate runs the activation rule. Caller holds the room mutex.
// The waiting -> active transition is a CAS, so duplicate joins race to a
// single winner; the problem retry path for an active-but-problemless room
// is guarded by the in-flight flag.
func (reg *Registry) maybeActivate(room *Room) {
	if !room.bothSlotsFilled() {
		return
	}

	switch room.status.Current() {
	case state.StatusWaiting:
		if !room.status.Advance(state.StatusWaiting, state.StatusActive) {
			return
		}
		room.StartTime = time.Now()
		reg.sendTo(room.sessionIDs(), network.MsgTypeStatusChanged, network.StatusChangedEvent{
			DuelID: room.ID, Status: state.StatusActive.String(),
		})
		if room.fetchInFlight.CompareAndSwap(false, true) {
			go reg.assignProblem(room)
		}
	case state.StatusActive:
		// The join snapshot already resent the problem and status, so a
		// rejoin never re-triggers activation. A missing problem means an
		// earlier fetch failed; the rejoin retries it.
		if room.problem == nil && room.fetchInFlight.CompareAndSwap(false, true) {
			go reg.assignProblem(room)
		}
	}
}

// assignProblem fetches the problem for an activated room and broadcasts
// it. Tournament duels pick from the tournament's curated pool when one is
// configured, otherwise a random problem from the tournament's platform.
func (reg *Registry) assignProblem(room *Room) {
	defer room.fetchInFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), reg.fetchTimeout)
	defer cancel()

	problem, err := reg.fetchProblem(ctx, room.TournamentID)

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if err != nil {
		logger.Log.Errorf("Problem fetch failed for duel %s: %v", room.ID, err)
		if reg.metrics != nil {
			reg.metrics.IncProblemFetchFailures()
		}
		reg.sendTo(room.sessionIDs(), network.MsgTypeError, network.ErrorEvent{
			Scope: "duel", RefID: room.ID, Message: "problem assignment failed",
		})
		return
	}

	if room.problem != nil || room.status.Current() == state.StatusFinished {
		return
	}
	room.problem = problem
	reg.sendTo(room.sessionIDs(), network.MsgTypeProblemAssigned, network.ProblemAssignedEvent{
		DuelID: room.ID, Problem: problem,
	})
}

func (reg *Registry) fetchProblem(ctx context.Context, tournamentID string) (*models.Problem, error) {
	if tournamentID == "" {
		return reg.source.GetRandomProblem(ctx, DefaultPlatform)
	}

	t, err := reg.tournaments.GetTournament(tournamentID)
	if err != nil {
		return nil, err
	}
	if len(t.ProblemIDs) > 0 {
		return reg.source.GetProblemByID(ctx, t.ProblemIDs[rand.Intn(len(t.ProblemIDs))])
	}
	platform := t.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	return reg.source.GetRandomProblem(ctx, platform)
}

// UpdateCode stores a competitor's editor content and echoes it to the
// room, spectators included. A connection/user mismatch is dropped without
// an error: a stale connection can legitimately race a reconnect here.
func (reg *Registry) UpdateCode(duelID, sessionID, userID string, role Role, code string) {
	reg.updateSlot(duelID, sessionID, userID, role, func(room *Room, c *Competitor) {
		c.Code = code
		reg.sendTo(room.sessionIDs(), network.MsgTypeCodeUpdated, network.CodeUpdatedEvent{
			DuelID: duelID, Role: string(role), Code: code,
		})
	})
}

// UpdateLanguage stores a competitor's language choice and echoes it.
func (reg *Registry) UpdateLanguage(duelID, sessionID, userID string, role Role, language string) {
	reg.updateSlot(duelID, sessionID, userID, role, func(room *Room, c *Competitor) {
		c.Language = language
		reg.sendTo(room.sessionIDs(), network.MsgTypeLanguageUpdated, network.LanguageUpdatedEvent{
			DuelID: duelID, Role: string(role), Language: language,
		})
	})
}

func (reg *Registry) updateSlot(duelID, sessionID, userID string, role Role, apply func(*Room, *Competitor)) {
	room, exists := reg.Get(duelID)
	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	i := slotIndex(role)
	if i < 0 || room.competitors[i] == nil {
		return
	}
	c := room.competitors[i]
	if c.SessionID != sessionID || c.UserID != userID {
		logger.Log.Debugf("Dropping stale update for duel %s role %s", duelID, role)
		return
	}
	apply(room, c)
}

// Problem returns the room's assigned problem, if any.
func (reg *Registry) Problem(duelID string) (*models.Problem, bool) {
	room, exists := reg.Get(duelID)
	if !exists {
		return nil, false
	}
	room.mutex.Lock()
	defer room.mutex.Unlock()
	return room.problem, room.problem != nil
}

// StartTime returns the activation timestamp of a running duel.
func (reg *Registry) StartTime(duelID string) (time.Time, error) {
	room, exists := reg.Get(duelID)
	if !exists {
		return time.Time{}, ErrRoomNotFound
	}
	room.mutex.Lock()
	defer room.mutex.Unlock()
	if room.status.Current() == state.StatusWaiting {
		return time.Time{}, ErrNotStarted
	}
	return room.StartTime, nil
}

// SubmitSolved marks the competitor solved at the given offset. The first
// solver wins the duel; later calls keep broadcasting the solved flag for
// the record but never change the winner.
func (reg *Registry) SubmitSolved(duelID, userID string, role Role, offset int64) error {
	room, exists := reg.Get(duelID)
	if !exists {
		return ErrRoomNotFound
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if room.status.Current() == state.StatusWaiting {
		return ErrNotStarted
	}
	i := slotIndex(role)
	if i < 0 || room.competitors[i] == nil || room.competitors[i].UserID != userID {
		return ErrNotSlotOwner
	}

	c := room.competitors[i]
	c.Solved = true
	c.SolvedAt = offset
	reg.sendTo(room.sessionIDs(), network.MsgTypeSolved, network.SolvedEvent{
		DuelID: duelID, UserID: userID, Role: string(role), TimeOffset: offset,
	})

	if room.winnerUserID != "" || !room.status.Advance(state.StatusActive, state.StatusFinished) {
		return nil
	}
	room.winnerUserID = userID
	reg.sendTo(room.sessionIDs(), network.MsgTypeDuelEnded, network.DuelEndedEvent{
		DuelID: duelID, WinnerUserID: userID,
	})

	if room.bothSlotsFilled() {
		reg.settle(room, c, room.competitors[1-i], false)
	}
	return nil
}

// HandleDisconnect vacates whatever the connection occupied. A competitor
// vanishing from an active duel forfeits it; the slot is cleared, never
// reassigned.
func (reg *Registry) HandleDisconnect(duelID, sessionID string) {
	room, exists := reg.Get(duelID)
	if !exists {
		return
	}

	room.mutex.Lock()

	if i := room.slotBySessionID(sessionID); i >= 0 {
		leaving := room.competitors[i]
		room.competitors[i] = nil
		reg.sendTo(room.sessionIDs(), network.MsgTypeUserLeft, network.UserLeftEvent{
			DuelID: duelID, UserID: leaving.UserID, Role: string(slotRole(i)),
		})

		if room.status.Advance(state.StatusActive, state.StatusFinished) {
			remaining := room.competitors[1-i]
			if remaining != nil {
				room.winnerUserID = remaining.UserID
			}
			reg.sendTo(room.sessionIDs(), network.MsgTypeDuelEnded, network.DuelEndedEvent{
				DuelID: duelID, WinnerUserID: room.winnerUserID, ForfeitUserID: leaving.UserID,
			})
			if remaining != nil {
				reg.settle(room, remaining, leaving, true)
			}
		}
	} else if _, ok := room.spectators[sessionID]; ok {
		delete(room.spectators, sessionID)
		reg.sendTo(room.sessionIDs(), network.MsgTypeUserLeft, network.UserLeftEvent{
			DuelID: duelID, Role: string(RoleSpectator),
		})
	}

	isEmpty := room.empty()
	room.mutex.Unlock()

	if isEmpty {
		reg.remove(duelID)
	}
}

// settle runs the two-phase completion effect: the duel-ended event has
// already gone out, now compute and persist ratings, then announce them.
// A failed write is logged and the ratings broadcast is skipped.
func (reg *Registry) settle(room *Room, winner, loser *Competitor, forfeit bool) {
	if reg.metrics != nil {
		reg.metrics.IncDuelsCompleted()
	}
	if reg.recorder == nil || winner.UserID == "" || loser.UserID == "" || winner.UserID == loser.UserID {
		return
	}

	duration := 0
	if !room.StartTime.IsZero() {
		duration = int(time.Since(room.StartTime).Seconds())
	}
	rec := &models.MatchRecord{
		DuelID:       room.ID,
		TournamentID: room.TournamentID,
		User1ID:      winner.UserID,
		User2ID:      loser.UserID,
		WinnerUserID: winner.UserID,
		Forfeit:      forfeit,
		Duration:     duration,
	}
	if room.problem != nil {
		rec.ProblemID = room.problem.ID
	}

	changes, err := reg.recorder.RecordResult(rec)
	if err != nil {
		logger.Log.Errorf("Rating write failed for duel %s: %v", room.ID, err)
		return
	}
	reg.sendTo(room.sessionIDs(), network.MsgTypeRatingsUpdated, network.RatingsUpdatedEvent{
		DuelID: room.ID, Changes: changes,
	})
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

func exclude(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
