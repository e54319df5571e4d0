// network/events.go
package network

import (
	"encoding/json"
	"time"

	"github.com/wfunc/duelserver/models"
)

// Inbound payloads.

type IdentifyRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type JoinDuelRequest struct {
	DuelID   string `json:"duel_id"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

type UpdateCodeRequest struct {
	DuelID string `json:"duel_id"`
	Role   string `json:"role"`
	Code   string `json:"code"`
}

type UpdateLanguageRequest struct {
	DuelID   string `json:"duel_id"`
	Role     string `json:"role"`
	Language string `json:"language"`
}

type SubmitCodeRequest struct {
	DuelID   string `json:"duel_id"`
	Role     string `json:"role"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type JoinHallRequest struct {
	TournamentID string `json:"tournament_id"`
}

type KickRequest struct {
	TournamentID string `json:"tournament_id"`
	TargetUserID string `json:"target_user_id"`
}

type StartRoundRequest struct {
	TournamentID string `json:"tournament_id"`
}

type SignalRequest struct {
	DuelID  string          `json:"duel_id"`
	To      string          `json:"to"` // target session id
	Payload json.RawMessage `json:"payload"`
}

type RequestStreamsRequest struct {
	DuelID  string   `json:"duel_id"`
	Targets []string `json:"targets"` // target session ids
}

// Outbound payloads.

type AssignedRoleEvent struct {
	DuelID string `json:"duel_id"`
	Role   string `json:"role"`
}

type CompetitorView struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Solved   bool   `json:"solved"`
	SolvedAt int64  `json:"solved_at,omitempty"` // seconds from start
}

type RoomSnapshotEvent struct {
	DuelID       string           `json:"duel_id"`
	TournamentID string           `json:"tournament_id,omitempty"`
	Status       string           `json:"status"`
	Competitors  []CompetitorView `json:"competitors"`
	Spectators   int              `json:"spectators"`
	Problem      *models.Problem  `json:"problem,omitempty"`
	WinnerUserID string           `json:"winner_user_id,omitempty"`
	StartTime    time.Time        `json:"start_time,omitempty"`
}

type UserJoinedEvent struct {
	DuelID string `json:"duel_id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type UserLeftEvent struct {
	DuelID string `json:"duel_id"`
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role"`
}

type CodeUpdatedEvent struct {
	DuelID string `json:"duel_id"`
	Role   string `json:"role"`
	Code   string `json:"code"`
}

type LanguageUpdatedEvent struct {
	DuelID   string `json:"duel_id"`
	Role     string `json:"role"`
	Language string `json:"language"`
}

type ProblemAssignedEvent struct {
	DuelID  string          `json:"duel_id"`
	Problem *models.Problem `json:"problem"`
}

type StatusChangedEvent struct {
	DuelID       string `json:"duel_id,omitempty"`
	TournamentID string `json:"tournament_id,omitempty"`
	Status       string `json:"status"`
}

type SolvedEvent struct {
	DuelID     string `json:"duel_id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	TimeOffset int64  `json:"time_offset"` // seconds from start
}

type DuelEndedEvent struct {
	DuelID        string `json:"duel_id"`
	WinnerUserID  string `json:"winner_user_id,omitempty"`
	ForfeitUserID string `json:"forfeit_user_id,omitempty"`
}

type RatingsUpdatedEvent struct {
	DuelID  string                `json:"duel_id"`
	Changes []models.RatingChange `json:"changes"`
}

type TestResult struct {
	Passed   bool   `json:"passed"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

type JudgeResultEvent struct {
	DuelID  string       `json:"duel_id"`
	Passed  bool         `json:"passed"`
	Results []TestResult `json:"results"`
}

type HallParticipantView struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

type HallSnapshotEvent struct {
	Tournament   *models.Tournament    `json:"tournament"`
	Participants []HallParticipantView `json:"participants"`
}

type HallUserEvent struct {
	TournamentID string `json:"tournament_id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name,omitempty"`
	Rating       int    `json:"rating,omitempty"`
}

type DuelInvitationEvent struct {
	TournamentID string `json:"tournament_id"`
	DuelID       string `json:"duel_id"`
	OpponentID   string `json:"opponent_id"`
	OpponentName string `json:"opponent_name"`
}

type NewDuelEvent struct {
	TournamentID string `json:"tournament_id"`
	DuelID       string `json:"duel_id"`
	User1Name    string `json:"user1_name"`
	User2Name    string `json:"user2_name"`
}

type ByeEvent struct {
	TournamentID string `json:"tournament_id"`
}

type KickedEvent struct {
	TournamentID string `json:"tournament_id"`
}

type SignalEvent struct {
	DuelID  string          `json:"duel_id"`
	From    string          `json:"from"` // sender session id
	Payload json.RawMessage `json:"payload"`
}

type StreamRequestEvent struct {
	DuelID string `json:"duel_id"`
	From   string `json:"from"`
}

type ErrorEvent struct {
	Scope   string `json:"scope"` // "duel", "hall", "request"
	RefID   string `json:"ref_id,omitempty"`
	Message string `json:"message"`
}
