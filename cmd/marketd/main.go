package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"curio/assets"
	"curio/config"
	"curio/core"
	"curio/observability/logging"
	"curio/rpc"
	"curio/storage"
)

const (
	authTokenEnv   = "CURIO_RPC_TOKEN"
	environmentEnv = "CURIO_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memoryFlag := flag.Bool("memory", false, "DEV ONLY: keep all state in memory instead of opening the data directory")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(environmentEnv))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup(cfg.ServiceName, env, cfg.LogFile)

	authToken := strings.TrimSpace(os.Getenv(authTokenEnv))
	if authToken == "" {
		authToken = cfg.AuthToken
	}
	if authToken == "" {
		logger.Warn("RPC auth token not configured; mutating methods will be rejected")
	}

	var db storage.Database
	if *memoryFlag {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = ldb
	}

	nodeCfg, err := buildNodeConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to build node configuration", slog.Any("error", err))
		os.Exit(1)
	}

	hub := assets.NewHub("CURIO")
	node, err := core.NewNode(db, hub, nodeCfg)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}
	defer node.Close()

	logger.Info("node ready", "summary", node.Describe())

	server := rpc.NewServer(node, authToken, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildNodeConfig(cfg *config.Config, logger *slog.Logger) (core.Config, error) {
	marketVault, err := config.ParseAddress(cfg.MarketVault)
	if err != nil {
		return core.Config{}, fmt.Errorf("MarketVault: %w", err)
	}
	incentiveVault, err := config.ParseAddress(cfg.IncentiveVault)
	if err != nil {
		return core.Config{}, fmt.Errorf("IncentiveVault: %w", err)
	}
	feeTreasury, err := config.ParseAddress(cfg.FeeTreasury)
	if err != nil {
		return core.Config{}, fmt.Errorf("FeeTreasury: %w", err)
	}
	tokens, err := config.ParseAddresses(cfg.PaymentTokens)
	if err != nil {
		return core.Config{}, fmt.Errorf("PaymentTokens: %w", err)
	}
	admins, err := config.ParseAddresses(cfg.Admins)
	if err != nil {
		return core.Config{}, fmt.Errorf("Admins: %w", err)
	}
	splitAdmins, err := config.ParseAddresses(cfg.SplitAdmins)
	if err != nil {
		return core.Config{}, fmt.Errorf("SplitAdmins: %w", err)
	}
	return core.Config{
		MarketVault:    marketVault,
		IncentiveVault: incentiveVault,
		FeeTreasury:    feeTreasury,
		PlatformFeeBps: cfg.PlatformFeeBps,
		PaymentTokens:  tokens,
		Admins:         admins,
		SplitAdmins:    splitAdmins,
		Logger:         logger,
	}, nil
}
