// duel/room.go
package duel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/state"
)

// Role 对决房间内的角色
type Role string

const (
	RoleCompetitor1 Role = "competitor1"
	RoleCompetitor2 Role = "competitor2"
	RoleSpectator   Role = "spectator"
)

func slotIndex(r Role) int {
	switch r {
	case RoleCompetitor1:
		return 0
	case RoleCompetitor2:
		return 1
	default:
		return -1
	}
}

func slotRole(i int) Role {
	if i == 0 {
		return RoleCompetitor1
	}
	return RoleCompetitor2
}

// Competitor 占用一个选手位的玩家。由所属房间独占持有。
type Competitor struct {
	SessionID string
	UserID    string
	Name      string
	Code      string
	Language  string
	Solved    bool
	SolvedAt  int64 // seconds from start
}

// Room 一场对决的实时状态。两个选手位是定长数组，
// "最多两名选手"由结构本身保证。
type Room struct {
	ID           string
	TournamentID string
	StartTime    time.Time

	competitors  [2]*Competitor
	spectators   map[string]struct{} // session ids
	problem      *models.Problem
	status       *state.Machine
	winnerUserID string

	fetchInFlight atomic.Bool
	mutex         sync.Mutex
}

func newRoom(id, tournamentID string) *Room {
	return &Room{
		ID:           id,
		TournamentID: tournamentID,
		spectators:   make(map[string]struct{}),
		status:       state.NewMachine(),
	}
}

// Status returns the room's lifecycle status.
func (r *Room) Status() state.Status {
	return r.status.Current()
}

// slotByUserID returns the slot index the user occupies, or -1. Anonymous
// competitors (empty user id) never match: reconnection is keyed on the
// durable user id, not the transient connection.
func (r *Room) slotByUserID(userID string) int {
	if userID == "" {
		return -1
	}
	for i, c := range r.competitors {
		if c != nil && c.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *Room) slotBySessionID(sessionID string) int {
	for i, c := range r.competitors {
		if c != nil && c.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (r *Room) bothSlotsFilled() bool {
	return r.competitors[0] != nil && r.competitors[1] != nil
}

func (r *Room) empty() bool {
	return r.competitors[0] == nil && r.competitors[1] == nil && len(r.spectators) == 0
}

// sessionIDs returns every connection in the room. Caller holds the mutex
// or tolerates staleness (broadcast targets).
func (r *Room) sessionIDs() []string {
	ids := make([]string, 0, 2+len(r.spectators))
	for _, c := range r.competitors {
		if c != nil {
			ids = append(ids, c.SessionID)
		}
	}
	for id := range r.spectators {
		ids = append(ids, id)
	}
	return ids
}

// snapshot builds the wire view of the room. Caller holds the mutex.
func (r *Room) snapshot() network.RoomSnapshotEvent {
	snap := network.RoomSnapshotEvent{
		DuelID:       r.ID,
		TournamentID: r.TournamentID,
		Status:       r.status.Current().String(),
		Spectators:   len(r.spectators),
		Problem:      r.problem,
		WinnerUserID: r.winnerUserID,
		StartTime:    r.StartTime,
	}
	for i, c := range r.competitors {
		if c == nil {
			continue
		}
		snap.Competitors = append(snap.Competitors, network.CompetitorView{
			UserID:   c.UserID,
			Name:     c.Name,
			Role:     string(slotRole(i)),
			Code:     c.Code,
			Language: c.Language,
			Solved:   c.Solved,
			SolvedAt: c.SolvedAt,
		})
	}
	return snap
}
