// models/gorm_models.go
package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultRating 新玩家初始评分
const DefaultRating = 1200

// GormUser 玩家模型
type GormUser struct {
	gorm.Model
	UserID string `gorm:"uniqueIndex;not null"`
	Name   string `gorm:"not null"`
	Rating int    `gorm:"default:1200"`
	Wins   int    `gorm:"default:0"`
	Losses int    `gorm:"default:0"`
}

// GormMatch 对决记录模型
type GormMatch struct {
	gorm.Model
	DuelID        string `gorm:"uniqueIndex;not null"`
	TournamentID  string `gorm:"index"`
	ProblemID     string
	User1ID       string `gorm:"index;not null"`
	User2ID       string `gorm:"index;not null"`
	WinnerUserID  string
	Forfeit       bool `gorm:"default:false"`
	Duration      int  `gorm:"default:0"` // 对决时长(秒)
	User1RatingBefore int
	User1RatingAfter  int
	User2RatingBefore int
	User2RatingAfter  int
}

// GormTournament 赛事模型
type GormTournament struct {
	gorm.Model
	TournamentID    string         `gorm:"uniqueIndex;not null"`
	Name            string         `gorm:"not null"`
	OrganizerID     string         `gorm:"index;not null"`
	Status          string         `gorm:"not null;default:pending"`
	MaxParticipants int            `gorm:"default:0"` // 0 = unlimited
	Platform        string
	ProblemIDs      pq.StringArray `gorm:"type:text[]"` // curated problem pool
}

// GormParticipation 参赛记录模型
type GormParticipation struct {
	gorm.Model
	TournamentID string `gorm:"index:idx_participation,unique;not null"`
	UserID       string `gorm:"index:idx_participation,unique;not null"`
	Active       bool   `gorm:"default:true"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Rating     int    `json:"rating"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}
