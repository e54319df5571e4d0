// services/tournament_service.go
package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/persistence"
)

// HallOpener opens a waiting hall for a newly created tournament.
type HallOpener interface {
	CreateHall(tournamentID, organizerID string)
}

var (
	ErrMissingName      = errors.New("tournament name is required")
	ErrMissingOrganizer = errors.New("organizer id is required")
	ErrBadCapacity      = errors.New("max participants must be at least 2")
)

// TournamentService 创建赛事并开启等候大厅
type TournamentService struct {
	db    persistence.Database
	halls HallOpener
}

func NewTournamentService(db persistence.Database, halls HallOpener) *TournamentService {
	return &TournamentService{db: db, halls: halls}
}

func (s *TournamentService) Create(name, organizerID string, maxParticipants int, platform string, problemIDs []string) (*models.Tournament, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	if organizerID == "" {
		return nil, ErrMissingOrganizer
	}
	if maxParticipants < 2 {
		return nil, ErrBadCapacity
	}

	t := &models.Tournament{
		ID:              uuid.New().String(),
		Name:            name,
		OrganizerID:     organizerID,
		Status:          models.TournamentPending,
		MaxParticipants: maxParticipants,
		Platform:        platform,
		ProblemIDs:      problemIDs,
		CreatedAt:       time.Now(),
	}
	if err := s.db.CreateTournament(t); err != nil {
		return nil, err
	}
	s.halls.CreateHall(t.ID, t.OrganizerID)
	return t, nil
}
