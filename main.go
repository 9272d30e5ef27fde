package main

import (
	"github.com/chessworld/gameserver/config"
	"github.com/chessworld/gameserver/logger"
	"github.com/chessworld/gameserver/monitor"
	"github.com/chessworld/gameserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize monitoring
	mon := monitor.NewMonitor("chessroom")
	mon.StartServer(cfg.Server.MetricsAddress)
	logger.Log.Infof("Metrics available on %s/metrics", cfg.Server.MetricsAddress)

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, mon)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
