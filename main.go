package main

import (
	"github.com/wfunc/duelserver/config"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/persistence"
	"github.com/wfunc/duelserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Initialize Duel Server
	duelServer := server.NewDuelServer(cfg, db)

	// Start Server
	logger.Log.Infof("Starting duel server on %s", cfg.Server.HTTPAddress)
	if err := duelServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
