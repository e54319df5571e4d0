package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/persistence"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatsService exposes player statistics over net/rpc for operator
// tooling. Methods follow the net/rpc signature rules.
type StatsService struct {
	db persistence.Database
}

func NewStatsService(db persistence.Database) *StatsService {
	return &StatsService{db: db}
}

type GetPlayerStatsArgs struct {
	UserID string
}

type GetPlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (ss *StatsService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	stats, err := ss.db.GetPlayerStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type GetRecentMatchesArgs struct {
	UserID string
	Limit  int
}

type GetRecentMatchesReply struct {
	Matches []models.GormMatch
}

func (ss *StatsService) GetRecentMatches(args *GetRecentMatchesArgs, reply *GetRecentMatchesReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	matches, err := ss.db.GetRecentMatches(args.UserID, limit)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}
