// persistence/interface.go
package persistence

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wfunc/duelserver/models"
)

// Database 数据库接口
type Database interface {
	EnsureUser(userID, name string) (*models.GormUser, error)
	GetUserRating(userID string) (int, error)
	UpdateUserRating(userID string, rating int) error
	GetPlayerStats(userID string) (*models.PlayerStats, error)

	CreateMatchRecord(rec *models.MatchRecord) error
	GetRecentMatches(userID string, limit int) ([]models.GormMatch, error)

	CreateTournament(t *models.Tournament) error
	GetTournament(id string) (*models.Tournament, error)
	SetTournamentStatus(id, status string) error

	CreateOrReactivateParticipation(tournamentID, userID string) error
	DeactivateParticipation(tournamentID, userID string) error
	HasParticipation(tournamentID, userID string) (bool, error)
	CountActiveParticipants(tournamentID string) (int, error)

	Transaction(fn func(tx *gorm.DB) error) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
