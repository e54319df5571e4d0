package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/duelserver/broadcast"
	"github.com/wfunc/duelserver/config"
	"github.com/wfunc/duelserver/duel"
	"github.com/wfunc/duelserver/hall"
	"github.com/wfunc/duelserver/judge"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/monitor"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/persistence"
	"github.com/wfunc/duelserver/problems"
	duelserver_rpc "github.com/wfunc/duelserver/rpc"
	"github.com/wfunc/duelserver/services"
	"github.com/wfunc/duelserver/session"
	"github.com/wfunc/duelserver/signal"
	"github.com/wfunc/duelserver/timer"
)

type DuelServer struct {
	addr           string
	monitorAddr    string
	idleTimeout    time.Duration
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	duels          *duel.Registry
	halls          *hall.Registry
	relay          *signal.Relay
	judge          judge.Gateway
	tournaments    *services.TournamentService
	mon            *monitor.Monitor
	rpcServer      *duelserver_rpc.Server
	timers         *timer.TimerManager
	shutdownChan   chan struct{}
}

func NewDuelServer(cfg *config.Config, db persistence.Database) *DuelServer {
	s := &DuelServer{
		addr:           cfg.Server.HTTPAddress,
		monitorAddr:    cfg.Server.MonitorAddress,
		idleTimeout:    cfg.Session.IdleTimeout,
		sessionManager: session.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	broadcaster := broadcast.NewSessionBroadcaster(s.sessionManager)

	source := problems.NewHTTPSource(cfg.ProblemSource.BaseURL, cfg.ProblemSource.Timeout)
	matchService := services.NewMatchService(db)
	s.duels = duel.NewRegistry(source, matchService, db, cfg.ProblemSource.Timeout)
	s.duels.SetBroadcaster(broadcaster)

	s.halls = hall.NewRegistry(db, s.duels)
	s.halls.SetBroadcaster(broadcaster)

	s.relay = signal.NewRelay(broadcaster)
	s.judge = judge.NewHTTPGateway(cfg.Judge.BaseURL, cfg.Judge.Timeout)
	s.tournaments = services.NewTournamentService(db, s.halls)

	s.mon = monitor.NewMonitor("duelserver")
	s.duels.SetMetrics(s.mon)

	rpcServer, err := duelserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(duelserver_rpc.NewStatsService(db))

	s.timers = timer.NewTimerManager()

	return s
}

func (s *DuelServer) Start() error {
	go s.rpcServer.Start()
	s.mon.StartServer(s.monitorAddr)

	s.timers.AddTimer(s.idleTimeout, s.idleTimeout/2, s.sweepIdleSessions)
	s.timers.AddTimer(10*time.Second, 10*time.Second, func() {
		s.mon.SetActiveDuels(s.duels.Count())
		s.mon.SetActiveHalls(s.halls.Count())
	})

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/tournaments", s.handleCreateTournament)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	logger.Log.Infof("Duel server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *DuelServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

// sweepIdleSessions closes connections with no traffic past the idle
// timeout. The read loop then runs the normal disconnect path.
func (s *DuelServer) sweepIdleSessions() {
	for _, sess := range s.sessionManager.Idle(s.idleTimeout) {
		logger.Log.Infof("Closing idle session %s", sess.GetID())
		sess.Close()
	}
}

func (s *DuelServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *DuelServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlineSessions()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		duelID, hallID := sess.Rooms()
		if duelID != "" {
			s.duels.HandleDisconnect(duelID, sess.GetID())
		}
		if hallID != "" {
			s.halls.HandleDisconnect(hallID, sess.GetID())
		}
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlineSessions()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			start := time.Now()
			s.mon.IncMessagesReceived()
			s.handlePacket(sess, packet)
			s.mon.ObserveMessageLatency(time.Since(start))
		}
	}
}

func (s *DuelServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// Touch above already refreshed LastActive.
	case network.MsgTypeIdentify:
		s.handleIdentify(sess, packet)
	case network.MsgTypeJoinDuel:
		s.handleJoinDuel(sess, packet)
	case network.MsgTypeUpdateCode:
		s.handleUpdateCode(sess, packet)
	case network.MsgTypeUpdateLanguage:
		s.handleUpdateLanguage(sess, packet)
	case network.MsgTypeSubmitCode:
		s.handleSubmitCode(sess, packet)
	case network.MsgTypeLeaveDuel:
		s.handleLeaveDuel(sess)
	case network.MsgTypeJoinHall:
		s.handleJoinHall(sess, packet)
	case network.MsgTypeKickUser:
		s.handleKick(sess, packet)
	case network.MsgTypeStartRound:
		s.handleStartRound(sess, packet)
	case network.MsgTypeSignal:
		s.handleSignal(sess, packet)
	case network.MsgTypeRequestStreams:
		s.handleRequestStreams(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *DuelServer) handleIdentify(sess *session.Session, packet *network.Packet) {
	var req network.IdentifyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.UserID, req.Name)
	logger.Log.Infof("Session %s identified as %s (%s)", sess.GetID(), req.Name, req.UserID)
}

func (s *DuelServer) handleJoinDuel(sess *session.Session, packet *network.Packet) {
	var req network.JoinDuelRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.DuelID == "" {
		return
	}
	userID, name := sess.Identity()
	role := s.duels.Join(req.DuelID, sess.GetID(), userID, name, req.Code, req.Language)
	sess.SetDuel(req.DuelID)
	logger.Log.Infof("Session %s joined duel %s as %s", sess.GetID(), req.DuelID, role)
}

func (s *DuelServer) handleUpdateCode(sess *session.Session, packet *network.Packet) {
	var req network.UpdateCodeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	userID, _ := sess.Identity()
	s.duels.UpdateCode(req.DuelID, sess.GetID(), userID, duel.Role(req.Role), req.Code)
}

func (s *DuelServer) handleUpdateLanguage(sess *session.Session, packet *network.Packet) {
	var req network.UpdateLanguageRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	userID, _ := sess.Identity()
	s.duels.UpdateLanguage(req.DuelID, sess.GetID(), userID, duel.Role(req.Role), req.Language)
}

func (s *DuelServer) handleSubmitCode(sess *session.Session, packet *network.Packet) {
	var req network.SubmitCodeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	// 评测是慢路径，放到独立goroutine避免阻塞读循环
	go s.judgeSubmission(sess, &req)
}

func (s *DuelServer) judgeSubmission(sess *session.Session, req *network.SubmitCodeRequest) {
	problem, ok := s.duels.Problem(req.DuelID)
	if !ok {
		s.sendError(sess, "duel", req.DuelID, "no problem assigned yet")
		return
	}

	verdict, err := s.judge.Judge(context.Background(), req.Code, req.Language, problem.Samples)
	if err != nil {
		logger.Log.Errorf("Judge request failed for duel %s: %v", req.DuelID, err)
		s.sendError(sess, "duel", req.DuelID, "judging unavailable, try again")
		return
	}

	result := network.JudgeResultEvent{
		DuelID:  req.DuelID,
		Passed:  verdict.Passed,
		Results: verdict.Results,
	}
	data, _ := json.Marshal(result)
	sess.Send(network.MsgTypeJudgeResult, data)

	if !verdict.Passed {
		return
	}

	start, err := s.duels.StartTime(req.DuelID)
	if err != nil {
		logger.Log.Warnf("Solve in duel %s rejected: %v", req.DuelID, err)
		return
	}
	offset := int64(time.Since(start).Seconds())
	userID, _ := sess.Identity()
	if err := s.duels.SubmitSolved(req.DuelID, userID, duel.Role(req.Role), offset); err != nil {
		logger.Log.Warnf("Solve in duel %s rejected: %v", req.DuelID, err)
	}
}

func (s *DuelServer) handleLeaveDuel(sess *session.Session) {
	duelID, _ := sess.Rooms()
	if duelID == "" {
		return
	}
	s.duels.HandleDisconnect(duelID, sess.GetID())
	sess.SetDuel("")
}

func (s *DuelServer) handleJoinHall(sess *session.Session, packet *network.Packet) {
	var req network.JoinHallRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	userID, name := sess.Identity()
	tournament, err := s.halls.Join(req.TournamentID, sess.GetID(), userID, name)
	if err != nil {
		s.sendError(sess, "hall", req.TournamentID, err.Error())
		return
	}
	sess.SetHall(tournament.ID)
}

func (s *DuelServer) handleKick(sess *session.Session, packet *network.Packet) {
	var req network.KickRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	userID, _ := sess.Identity()
	targetSessionID, err := s.halls.Kick(req.TournamentID, userID, req.TargetUserID)
	if err != nil {
		s.sendError(sess, "hall", req.TournamentID, err.Error())
		return
	}
	if target, ok := s.sessionManager.Get(targetSessionID); ok {
		target.SetHall("")
	}
}

func (s *DuelServer) handleStartRound(sess *session.Session, packet *network.Packet) {
	var req network.StartRoundRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	userID, _ := sess.Identity()
	if err := s.halls.StartRound(req.TournamentID, userID); err != nil {
		s.sendError(sess, "hall", req.TournamentID, err.Error())
	}
}

func (s *DuelServer) handleSignal(sess *session.Session, packet *network.Packet) {
	var req network.SignalRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.relay.Forward(req.DuelID, sess.GetID(), req.To, req.Payload)
}

func (s *DuelServer) handleRequestStreams(sess *session.Session, packet *network.Packet) {
	var req network.RequestStreamsRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.relay.RequestStreams(req.DuelID, sess.GetID(), req.Targets)
}

func (s *DuelServer) sendError(sess *session.Session, scope, refID, message string) {
	data, _ := json.Marshal(network.ErrorEvent{
		Scope:   scope,
		RefID:   refID,
		Message: message,
	})
	sess.Send(network.MsgTypeError, data)
}

type createTournamentRequest struct {
	Name            string   `json:"name"`
	OrganizerID     string   `json:"organizer_id"`
	MaxParticipants int      `json:"max_participants"`
	Platform        string   `json:"platform"`
	ProblemIDs      []string `json:"problem_ids"`
}

func (s *DuelServer) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tournament, err := s.tournaments.Create(req.Name, req.OrganizerID, req.MaxParticipants, req.Platform, req.ProblemIDs)
	switch err {
	case nil:
	case services.ErrMissingName, services.ErrMissingOrganizer, services.ErrBadCapacity:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		logger.Log.Errorf("Failed to create tournament: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tournament)
}
