// hall/hall.go
package hall

import (
	"sync"

	"github.com/wfunc/duelserver/network"
)

// Participant 大厅里的一名在线参赛者
type Participant struct {
	SessionID string
	UserID    string
	Name      string
	Rating    int
}

// Hall 一个赛事大厅的实时出席名单。与持久化的赛事记录共存亡于进程，
// 只回答"现在谁在场"。
type Hall struct {
	TournamentID string
	OrganizerID  string

	participants map[string]*Participant // user id -> live participant
	mutex        sync.Mutex
}

func newHall(tournamentID, organizerID string) *Hall {
	return &Hall{
		TournamentID: tournamentID,
		OrganizerID:  organizerID,
		participants: make(map[string]*Participant),
	}
}

// sessionIDs returns every live connection in the hall. Caller holds the
// mutex or tolerates staleness.
func (h *Hall) sessionIDs() []string {
	ids := make([]string, 0, len(h.participants))
	for _, p := range h.participants {
		ids = append(ids, p.SessionID)
	}
	return ids
}

// views builds the wire view of the presence list. Caller holds the mutex.
func (h *Hall) views() []network.HallParticipantView {
	views := make([]network.HallParticipantView, 0, len(h.participants))
	for _, p := range h.participants {
		views = append(views, network.HallParticipantView{
			UserID: p.UserID,
			Name:   p.Name,
			Rating: p.Rating,
		})
	}
	return views
}
