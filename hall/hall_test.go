package hall

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
)

func TestMain(m *testing.M) {
	logger.InitDev()
	os.Exit(m.Run())
}

type sentMessage struct {
	Targets []string
	MsgID   uint16
	Data    []byte
}

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	mutex  sync.Mutex
	events []sentMessage
}

func (b *MockBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	return b.SendToSessions([]string{sessionID}, msgID, data)
}

func (b *MockBroadcaster) SendToSessions(sessionIDs []string, msgID uint16, data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.events = append(b.events, sentMessage{Targets: append([]string(nil), sessionIDs...), MsgID: msgID, Data: data})
	return nil
}

func (b *MockBroadcaster) count(msgID uint16) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	n := 0
	for _, e := range b.events {
		if e.MsgID == msgID {
			n++
		}
	}
	return n
}

// MockStore is a test double for the TournamentStore interface.
type MockStore struct {
	mutex          sync.Mutex
	tournament     *models.Tournament
	participations map[string]bool // userID -> active
	statusWrites   []string
}

func newMockStore(t *models.Tournament) *MockStore {
	return &MockStore{tournament: t, participations: make(map[string]bool)}
}

func (s *MockStore) GetTournament(id string) (*models.Tournament, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.tournament == nil || s.tournament.ID != id {
		return nil, errors.New("not found")
	}
	t := *s.tournament
	return &t, nil
}

func (s *MockStore) SetTournamentStatus(id, status string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tournament.Status = status
	s.statusWrites = append(s.statusWrites, status)
	return nil
}

func (s *MockStore) CreateOrReactivateParticipation(tournamentID, userID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.participations[userID] = true
	return nil
}

func (s *MockStore) DeactivateParticipation(tournamentID, userID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.participations[userID]; ok {
		s.participations[userID] = false
	}
	return nil
}

func (s *MockStore) HasParticipation(tournamentID, userID string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.participations[userID]
	return ok, nil
}

func (s *MockStore) CountActiveParticipants(tournamentID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	n := 0
	for _, active := range s.participations {
		if active {
			n++
		}
	}
	return n, nil
}

func (s *MockStore) GetUserRating(userID string) (int, error) {
	return models.DefaultRating, nil
}

// MockDuelCreator is a test double for the DuelCreator interface.
type MockDuelCreator struct {
	mutex   sync.Mutex
	created []string
}

func (c *MockDuelCreator) CreateTournamentDuel(tournamentID string) string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	id := fmt.Sprintf("duel-%d", len(c.created)+1)
	c.created = append(c.created, id)
	return id
}

func newTestRegistry(t *models.Tournament) (*Registry, *MockBroadcaster, *MockStore, *MockDuelCreator) {
	store := newMockStore(t)
	creator := &MockDuelCreator{}
	reg := NewRegistry(store, creator)
	b := &MockBroadcaster{}
	reg.SetBroadcaster(b)
	reg.CreateHall(t.ID, t.OrganizerID)
	return reg, b, store, creator
}

func pendingTournament() *models.Tournament {
	return &models.Tournament{
		ID:              "t1",
		Name:            "Friday Cup",
		OrganizerID:     "org",
		Status:          models.TournamentPending,
		MaxParticipants: 4,
	}
}

func TestRegistry_JoinRequiresIdentity(t *testing.T) {
	reg, _, _, _ := newTestRegistry(pendingTournament())

	if _, err := reg.Join("t1", "s1", "", "ghost"); err != ErrAnonymous {
		t.Fatalf("anonymous join should be rejected, got %v", err)
	}
}

func TestRegistry_JoinUnknownHall(t *testing.T) {
	reg, _, _, _ := newTestRegistry(pendingTournament())

	if _, err := reg.Join("nope", "s1", "u1", "alice"); err != ErrHallNotFound {
		t.Fatalf("joining a missing hall should fail, got %v", err)
	}
}

func TestRegistry_JoinEnforcesCapacity(t *testing.T) {
	tournament := pendingTournament()
	tournament.MaxParticipants = 2
	reg, _, _, _ := newTestRegistry(tournament)

	if _, err := reg.Join("t1", "s1", "u1", "alice"); err != nil {
		t.Fatalf("first join should succeed: %v", err)
	}
	if _, err := reg.Join("t1", "s2", "u2", "bob"); err != nil {
		t.Fatalf("second join should succeed: %v", err)
	}
	if _, err := reg.Join("t1", "s3", "u3", "carol"); err != ErrTournamentFull {
		t.Fatalf("join beyond capacity should be rejected, got %v", err)
	}

	// An existing participant can always rejoin regardless of capacity.
	if _, err := reg.Join("t1", "s1b", "u1", "alice"); err != nil {
		t.Fatalf("rejoin should succeed: %v", err)
	}
}

func TestRegistry_NoLatecomersAfterStart(t *testing.T) {
	tournament := pendingTournament()
	reg, _, store, _ := newTestRegistry(tournament)

	if _, err := reg.Join("t1", "s1", "u1", "alice"); err != nil {
		t.Fatal(err)
	}
	store.SetTournamentStatus("t1", models.TournamentActive)

	if _, err := reg.Join("t1", "s9", "u9", "dave"); err != ErrAlreadyStarted {
		t.Fatalf("latecomer should be rejected, got %v", err)
	}
	// Existing participant reconnects fine.
	if _, err := reg.Join("t1", "s1b", "u1", "alice"); err != nil {
		t.Fatalf("participant rejoin should succeed: %v", err)
	}
}

func TestRegistry_LatestJoinWins(t *testing.T) {
	reg, _, _, _ := newTestRegistry(pendingTournament())

	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s1b", "u1", "alice")

	hall, _ := reg.Get("t1")
	hall.mutex.Lock()
	defer hall.mutex.Unlock()
	if len(hall.participants) != 1 {
		t.Fatalf("user should hold one live entry, got %d", len(hall.participants))
	}
	if hall.participants["u1"].SessionID != "s1b" {
		t.Fatal("latest connection should win")
	}
}

func TestRegistry_KickAuthorization(t *testing.T) {
	reg, _, store, _ := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s2", "u2", "bob")

	if _, err := reg.Kick("t1", "u1", "u2"); err != ErrNotOrganizer {
		t.Fatalf("non-organizer kick should be rejected, got %v", err)
	}
	hall, _ := reg.Get("t1")
	hall.mutex.Lock()
	if len(hall.participants) != 2 {
		t.Fatal("rejected kick must not change the participant map")
	}
	hall.mutex.Unlock()

	if _, err := reg.Kick("t1", "org", "org"); err != ErrSelfKick {
		t.Fatalf("self-kick should be rejected, got %v", err)
	}

	sessionID, err := reg.Kick("t1", "org", "u2")
	if err != nil {
		t.Fatalf("organizer kick should succeed: %v", err)
	}
	if sessionID != "s2" {
		t.Fatalf("kick should return the target's session id, got %q", sessionID)
	}
	hall.mutex.Lock()
	if _, ok := hall.participants["u2"]; ok {
		t.Fatal("kicked participant should be removed from the hall")
	}
	hall.mutex.Unlock()
	store.mutex.Lock()
	if store.participations["u2"] {
		t.Fatal("kicked participant's record should be deactivated")
	}
	store.mutex.Unlock()
}

func TestRegistry_StartRoundPairingOdd(t *testing.T) {
	reg, b, store, creator := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s2", "u2", "bob")
	reg.Join("t1", "s3", "u3", "carol")

	if err := reg.StartRound("t1", "u1"); err != ErrNotOrganizer {
		t.Fatalf("non-organizer start should be rejected, got %v", err)
	}

	if err := reg.StartRound("t1", "org"); err != nil {
		t.Fatalf("start round should succeed: %v", err)
	}

	if got := len(creator.created); got != 1 {
		t.Fatalf("three participants should produce one duel, got %d", got)
	}
	if got := b.count(network.MsgTypeDuelInvitation); got != 2 {
		t.Fatalf("expected 2 invitations, got %d", got)
	}
	if got := b.count(network.MsgTypeBye); got != 1 {
		t.Fatalf("expected exactly one bye, got %d", got)
	}
	if got := b.count(network.MsgTypeNewDuel); got != 1 {
		t.Fatalf("expected one duel announcement, got %d", got)
	}
	store.mutex.Lock()
	if store.tournament.Status != models.TournamentActive {
		t.Fatal("starting the first round should mark the tournament active")
	}
	store.mutex.Unlock()
}

func TestRegistry_StartRoundPairingEven(t *testing.T) {
	reg, b, _, creator := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s2", "u2", "bob")
	reg.Join("t1", "s3", "u3", "carol")
	reg.Join("t1", "s4", "u4", "dave")

	if err := reg.StartRound("t1", "org"); err != nil {
		t.Fatalf("start round should succeed: %v", err)
	}

	if got := len(creator.created); got != 2 {
		t.Fatalf("four participants should produce two duels, got %d", got)
	}
	if got := b.count(network.MsgTypeDuelInvitation); got != 4 {
		t.Fatalf("expected 4 invitations, got %d", got)
	}
	if got := b.count(network.MsgTypeBye); got != 0 {
		t.Fatalf("expected no byes, got %d", got)
	}
}

func TestRegistry_StartRoundNeedsTwoPlayers(t *testing.T) {
	reg, _, _, _ := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")

	if err := reg.StartRound("t1", "org"); err != ErrNotEnoughPlayers {
		t.Fatalf("single-participant round should be rejected, got %v", err)
	}
}

func TestRegistry_DisconnectRemovesPresenceOnly(t *testing.T) {
	reg, b, store, _ := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s2", "u2", "bob")

	reg.HandleDisconnect("t1", "s1")

	hall, _ := reg.Get("t1")
	hall.mutex.Lock()
	if _, ok := hall.participants["u1"]; ok {
		t.Fatal("disconnected participant should leave the presence map")
	}
	hall.mutex.Unlock()
	if b.count(network.MsgTypeUserLeftHall) != 1 {
		t.Fatal("disconnect should broadcast user-left-hall")
	}
	store.mutex.Lock()
	if !store.participations["u1"] {
		t.Fatal("disconnect must not touch the participation record")
	}
	store.mutex.Unlock()
}

func TestRegistry_DisconnectOfStaleSessionIsIgnored(t *testing.T) {
	reg, _, _, _ := newTestRegistry(pendingTournament())
	reg.Join("t1", "s1", "u1", "alice")
	reg.Join("t1", "s1b", "u1", "alice") // reconnect, s1 is now stale

	reg.HandleDisconnect("t1", "s1")

	hall, _ := reg.Get("t1")
	hall.mutex.Lock()
	defer hall.mutex.Unlock()
	if _, ok := hall.participants["u1"]; !ok {
		t.Fatal("stale disconnect must not remove the freshly bound participant")
	}
}
