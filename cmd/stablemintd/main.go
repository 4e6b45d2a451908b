package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stablemint/config"
	"stablemint/crypto"
	nativecommon "stablemint/native/common"
	"stablemint/native/token"
	"stablemint/native/vault"
	"stablemint/observability/logging"
	"stablemint/oracle"
	"stablemint/rpc"
	"stablemint/storage"
)

const envVar = "STABLEMINT_ENV"

// stableSymbol is the ledger symbol of the issued stablecoin.
const stableSymbol = "SMX"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Log.Environment
	}
	logger := logging.SetupWithFile(cfg.Log.Service, env, cfg.Log.FileOptions())

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine, err := buildEngine(db, cfg)
	if err != nil {
		logger.Error("Failed to build vault engine", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Oracle.Enabled {
		poller, cleanup, err := buildPoller(cfg, engine, logger)
		if err != nil {
			logger.Error("Failed to build price poller", slog.Any("error", err))
			os.Exit(1)
		}
		defer cleanup()
		go func() {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Price poller stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(engine, rpc.ServerOptions{
		AuthToken:  cfg.AuthToken,
		RatePerSec: cfg.RPCRatePerSec,
		Burst:      cfg.RPCBurst,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("RPC server listening", slog.String("addr", cfg.RPCAddress))
		errCh <- server.Start(cfg.RPCAddress)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", slog.Any("error", err))
		}
	}
}

// buildEngine wires persistence, token ledgers and collateral adapters, then
// replays the configured registry so restarts are idempotent.
func buildEngine(db storage.Database, cfg *config.Config) (*vault.Engine, error) {
	admin, err := crypto.DecodeAddress(cfg.Vault.AdminAddress)
	if err != nil {
		return nil, fmt.Errorf("admin address: %w", err)
	}
	reserve := crypto.ModuleAddress("reserve")
	if trimmed := strings.TrimSpace(cfg.Vault.ReserveAddress); trimmed != "" {
		reserve, err = crypto.DecodeAddress(trimmed)
		if err != nil {
			return nil, fmt.Errorf("reserve address: %w", err)
		}
	}

	engine := vault.NewEngine(admin)
	engine.SetState(vault.NewKVState(db))
	engine.SetStableToken(token.NewLedger(db, stableSymbol))
	engine.SetReserve(reserve)
	engine.SetPauses(nativecommon.NewPauseSet(cfg.Vault.Paused...))

	registered := make(map[string]struct{})
	for _, col := range cfg.Vault.Collateral {
		name := strings.TrimSpace(col.AdapterName)
		if name == "" {
			return nil, fmt.Errorf("collateral %s: adapter name required", col.Code)
		}
		if _, done := registered[name]; done {
			continue
		}
		registered[name] = struct{}{}
		symbol := strings.TrimSpace(col.TokenRef)
		if symbol == "" {
			symbol = strings.ToUpper(strings.TrimSpace(col.Code))
		}
		custody := crypto.ModuleAddress("custody/" + name)
		engine.RegisterAdapter(name, token.NewCustodian(token.NewLedger(db, symbol), custody))
	}

	oracles := make([]crypto.Address, 0, len(cfg.Vault.Oracles))
	for _, raw := range cfg.Vault.Oracles {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("oracle address %q: %w", raw, err)
		}
		oracles = append(oracles, addr)
	}
	if err := engine.Initialize(oracles); err != nil && !errors.Is(err, vault.ErrInitialized) {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	for _, col := range cfg.Vault.Collateral {
		params, err := col.Params()
		if err != nil {
			return nil, err
		}
		if err := engine.AddCollateralType(admin, params); err != nil && !errors.Is(err, vault.ErrDuplicateCollateralType) {
			return nil, fmt.Errorf("register collateral %s: %w", col.Code, err)
		}
	}
	return engine, nil
}

// buildPoller assembles the embedded price sidecar from its YAML config. The
// returned cleanup closes the journal and history stores.
func buildPoller(cfg *config.Config, engine *vault.Engine, logger *slog.Logger) (*oracle.Poller, func(), error) {
	ocfg, err := oracle.LoadConfig(cfg.Oracle.ConfigFile)
	if err != nil {
		return nil, nil, err
	}

	keyPath := strings.TrimSpace(cfg.Oracle.KeyFile)
	if keyPath == "" {
		keyPath = strings.TrimSpace(ocfg.KeyFile)
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read oracle key: %w", err)
	}
	key, err := crypto.PrivateKeyFromHex(string(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse oracle key: %w", err)
	}

	agg, _, err := oracle.BuildAggregator(ocfg, nil)
	if err != nil {
		return nil, nil, err
	}

	closers := make([]func() error, 0, 2)
	cleanup := func() {
		for _, fn := range closers {
			if err := fn(); err != nil {
				logger.Warn("Oracle store close failed", slog.Any("error", err))
			}
		}
	}

	opts := oracle.PollerOptions{Logger: logger}
	if path := strings.TrimSpace(ocfg.JournalPath); path != "" {
		journal, err := oracle.OpenJournal(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		closers = append(closers, journal.Close)
		opts.Journal = journal
	}
	if path := strings.TrimSpace(ocfg.HistoryPath); path != "" {
		history, err := oracle.OpenHistory(path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		closers = append(closers, history.Close)
		opts.History = history
	}

	oracles := make([]crypto.Address, 0, len(cfg.Vault.Oracles))
	for _, raw := range cfg.Vault.Oracles {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("oracle address %q: %w", raw, err)
		}
		oracles = append(oracles, addr)
	}

	poller, err := oracle.NewPoller(agg, engine, key, oracles, ocfg.Codes, ocfg.Interval.Duration, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return poller, cleanup, nil
}
