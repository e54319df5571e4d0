// duel/interfaces.go
package duel

import (
	"github.com/wfunc/duelserver/models"
)

// Broadcaster is the send surface the registry needs: pure fan-out to
// connections. The registry resolves room membership itself, under the room
// lock, so delivery order matches the order state changes were applied.
// Defined here to break the import cycle between duel and broadcast.
type Broadcaster interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
	SendToSessions(sessionIDs []string, msgID uint16, data []byte) error
}

// ResultRecorder persists a finished duel and returns the rating changes.
// Implemented by services.MatchService.
type ResultRecorder interface {
	RecordResult(rec *models.MatchRecord) ([]models.RatingChange, error)
}

// TournamentInfo resolves the problem-selection policy for tournament duels.
// Implemented by persistence.Database.
type TournamentInfo interface {
	GetTournament(id string) (*models.Tournament, error)
}

// Metrics is the counter surface the registry reports to. Implemented by
// monitor.Monitor; a nil Metrics is a no-op.
type Metrics interface {
	IncProblemFetchFailures()
	IncDuelsCompleted()
}
