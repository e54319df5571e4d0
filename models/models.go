// models/models.go
package models

import (
	"time"
)

// SampleTest 题目样例（输入 + 期望输出）
type SampleTest struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Problem 一次对决绑定的题目快照，分配后只读
type Problem struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Statement string            `json:"statement"`
	Platform  string            `json:"platform"`
	Samples   []SampleTest      `json:"samples"`
	Scaffolds map[string]string `json:"scaffolds,omitempty"` // language -> starter code
}

// RatingChange 单个玩家的一次评分变动
type RatingChange struct {
	UserID    string `json:"user_id"`
	OldRating int    `json:"old_rating"`
	NewRating int    `json:"new_rating"`
}

// MatchRecord 对决结束后的持久化记录
type MatchRecord struct {
	DuelID       string    `json:"duel_id"`
	TournamentID string    `json:"tournament_id,omitempty"`
	ProblemID    string    `json:"problem_id,omitempty"`
	User1ID      string    `json:"user1_id"`
	User2ID      string    `json:"user2_id"`
	WinnerUserID string    `json:"winner_user_id,omitempty"` // empty = draw
	Forfeit      bool      `json:"forfeit"`
	Duration     int       `json:"duration"` // seconds
	Ratings      []RatingChange
	CreatedAt    time.Time `json:"created_at"`
}

// Tournament statuses. Only pending tournaments accept new participants.
const (
	TournamentPending   = "pending"
	TournamentActive    = "active"
	TournamentCompleted = "completed"
	TournamentCancelled = "cancelled"
)

// Tournament 赛事记录
type Tournament struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	OrganizerID     string    `json:"organizer_id"`
	Status          string    `json:"status"`
	MaxParticipants int       `json:"max_participants"`
	Platform        string    `json:"platform"`
	ProblemIDs      []string  `json:"problem_ids,omitempty"` // curated pool, empty = random
	CreatedAt       time.Time `json:"created_at"`
}

// Joinable reports whether the persisted tournament can still be entered.
func (t *Tournament) Joinable() bool {
	return t.Status == TournamentPending || t.Status == TournamentActive
}
