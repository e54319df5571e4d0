// services/services_test.go
package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
)

func TestMain(m *testing.M) {
	logger.InitDev()
	m.Run()
}

// MockDatabase 模拟数据库
type MockDatabase struct {
	users        map[string]*models.GormUser
	tournaments  map[string]*models.Tournament
	txCalls      int
	createCalls  int
	failCreate   bool
	failTx       bool
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		users:       make(map[string]*models.GormUser),
		tournaments: make(map[string]*models.Tournament),
	}
}

func (m *MockDatabase) EnsureUser(userID, name string) (*models.GormUser, error) {
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	u := &models.GormUser{UserID: userID, Name: name, Rating: models.DefaultRating}
	m.users[userID] = u
	return u, nil
}

func (m *MockDatabase) GetUserRating(userID string) (int, error) {
	if u, ok := m.users[userID]; ok {
		return u.Rating, nil
	}
	return models.DefaultRating, nil
}

func (m *MockDatabase) UpdateUserRating(userID string, rating int) error { return nil }

func (m *MockDatabase) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	return &models.PlayerStats{UserID: userID}, nil
}

func (m *MockDatabase) CreateMatchRecord(rec *models.MatchRecord) error { return nil }

func (m *MockDatabase) GetRecentMatches(userID string, limit int) ([]models.GormMatch, error) {
	return nil, nil
}

func (m *MockDatabase) CreateTournament(t *models.Tournament) error {
	m.createCalls++
	if m.failCreate {
		return gorm.ErrInvalidDB
	}
	m.tournaments[t.ID] = t
	return nil
}

func (m *MockDatabase) GetTournament(id string) (*models.Tournament, error) {
	return m.tournaments[id], nil
}

func (m *MockDatabase) SetTournamentStatus(id, status string) error { return nil }

func (m *MockDatabase) CreateOrReactivateParticipation(tournamentID, userID string) error {
	return nil
}

func (m *MockDatabase) DeactivateParticipation(tournamentID, userID string) error { return nil }

func (m *MockDatabase) HasParticipation(tournamentID, userID string) (bool, error) {
	return false, nil
}

func (m *MockDatabase) CountActiveParticipants(tournamentID string) (int, error) { return 0, nil }

func (m *MockDatabase) Transaction(fn func(tx *gorm.DB) error) error {
	m.txCalls++
	if m.failTx {
		return gorm.ErrInvalidTransaction
	}
	// 单元测试中不执行真实事务
	return nil
}

func (m *MockDatabase) Close() error { return nil }

// MockHallOpener 模拟大厅创建
type MockHallOpener struct {
	opened []string
}

func (m *MockHallOpener) CreateHall(tournamentID, organizerID string) {
	m.opened = append(m.opened, tournamentID)
}

func TestRecordResultAppliesElo(t *testing.T) {
	db := NewMockDatabase()
	db.users["alice"] = &models.GormUser{UserID: "alice", Rating: 1200}
	db.users["bob"] = &models.GormUser{UserID: "bob", Rating: 1200}

	svc := NewMatchService(db)
	rec := &models.MatchRecord{
		DuelID:    "duel-1",
		User1ID:   "alice",
		User2ID:   "bob",
		Duration:  90,
		CreatedAt: time.Now(),
	}
	changes, err := svc.RecordResult(rec)
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].NewRating != 1216 || changes[1].NewRating != 1184 {
		t.Errorf("unexpected ratings: %d / %d", changes[0].NewRating, changes[1].NewRating)
	}
	if db.txCalls != 1 {
		t.Errorf("expected one transaction, got %d", db.txCalls)
	}
	if len(rec.Ratings) != 2 {
		t.Errorf("match record should carry the rating changes")
	}
}

func TestRecordResultUnknownUsersGetDefaultRating(t *testing.T) {
	db := NewMockDatabase()
	svc := NewMatchService(db)
	changes, err := svc.RecordResult(&models.MatchRecord{
		DuelID:  "duel-2",
		User1ID: "carol",
		User2ID: "dave",
	})
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if changes[0].OldRating != models.DefaultRating || changes[1].OldRating != models.DefaultRating {
		t.Errorf("unknown users should start at the default rating")
	}
}

func TestRecordResultTransactionFailure(t *testing.T) {
	db := NewMockDatabase()
	db.failTx = true
	svc := NewMatchService(db)
	if _, err := svc.RecordResult(&models.MatchRecord{User1ID: "a", User2ID: "b"}); err == nil {
		t.Fatal("expected transaction error")
	}
}

func TestCreateTournamentOpensHall(t *testing.T) {
	db := NewMockDatabase()
	halls := &MockHallOpener{}
	svc := NewTournamentService(db, halls)

	tour, err := svc.Create("Friday Night", "org-1", 8, "codeforces", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tour.ID == "" {
		t.Error("tournament should get an id")
	}
	if tour.Status != models.TournamentPending {
		t.Errorf("new tournament should be pending, got %s", tour.Status)
	}
	if len(halls.opened) != 1 || halls.opened[0] != tour.ID {
		t.Errorf("hall should be opened for the new tournament")
	}
	if db.createCalls != 1 {
		t.Errorf("tournament should be persisted once")
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	svc := NewTournamentService(NewMockDatabase(), &MockHallOpener{})
	cases := []struct {
		name        string
		organizerID string
		max         int
		wantErr     error
	}{
		{"", "org", 8, ErrMissingName},
		{"Duel Cup", "", 8, ErrMissingOrganizer},
		{"Duel Cup", "org", 1, ErrBadCapacity},
	}
	for _, c := range cases {
		if _, err := svc.Create(c.name, c.organizerID, c.max, "", nil); err != c.wantErr {
			t.Errorf("Create(%q, %q, %d) error = %v, want %v", c.name, c.organizerID, c.max, err, c.wantErr)
		}
	}
}

func TestCreateTournamentPersistFailure(t *testing.T) {
	db := NewMockDatabase()
	db.failCreate = true
	halls := &MockHallOpener{}
	svc := NewTournamentService(db, halls)
	if _, err := svc.Create("Duel Cup", "org", 4, "", nil); err == nil {
		t.Fatal("expected persistence error")
	}
	if len(halls.opened) != 0 {
		t.Error("hall must not open when persistence fails")
	}
}
