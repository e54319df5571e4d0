// hall/interfaces.go
package hall

import (
	"github.com/wfunc/duelserver/models"
)

// Broadcaster is the fan-out surface, same shape the duel registry uses.
type Broadcaster interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
	SendToSessions(sessionIDs []string, msgID uint16, data []byte) error
}

// TournamentStore is the slice of persistence the hall registry needs.
// Implemented by persistence.Database.
type TournamentStore interface {
	GetTournament(id string) (*models.Tournament, error)
	SetTournamentStatus(id, status string) error
	CreateOrReactivateParticipation(tournamentID, userID string) error
	DeactivateParticipation(tournamentID, userID string) error
	HasParticipation(tournamentID, userID string) (bool, error)
	CountActiveParticipants(tournamentID string) (int, error)
	GetUserRating(userID string) (int, error)
}

// DuelCreator pre-creates tournament duel rooms. Implemented by
// duel.Registry.
type DuelCreator interface {
	CreateTournamentDuel(tournamentID string) string
}
