package main

import (
	"errors"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/invisicipher/secure-image-backend/auth"
	"github.com/invisicipher/secure-image-backend/common"
	"github.com/invisicipher/secure-image-backend/config"
	"github.com/invisicipher/secure-image-backend/docstore"
	"github.com/invisicipher/secure-image-backend/httpserver"
	"github.com/invisicipher/secure-image-backend/ledger"
	"github.com/invisicipher/secure-image-backend/pipeline"
	"github.com/invisicipher/secure-image-backend/storage"
	"github.com/invisicipher/secure-image-backend/token"
	"github.com/invisicipher/secure-image-backend/transform"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to TOML config file; flags override file values",
	},
	&cli.StringFlag{
		Name:  "rpc-addr",
		Value: "",
		Usage: "address to connect to Ethereum RPC",
	},
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:  "credential-contract",
		Value: "",
		Usage: "address of the credential anchoring contract",
	},
	&cli.StringFlag{
		Name:  "record-contract",
		Value: "",
		Usage: "address of the record pointer contract",
	},
	&cli.StringFlag{
		Name:  "signer-key",
		Value: "",
		Usage: "hex-encoded private key of the service operator wallet",
	},
	&cli.Int64Flag{
		Name:  "chain-id",
		Value: 0,
		Usage: "chain id for transaction signing",
	},
	&cli.StringFlag{
		Name:  "content-uri",
		Value: "",
		Usage: "content store URI (ipfs://host:port, file:///path, s3://bucket)",
	},
	&cli.StringFlag{
		Name:  "cache-dir",
		Value: "",
		Usage: "directory for cached stego artifacts",
	},
	&cli.StringFlag{
		Name:  "db-path",
		Value: "",
		Usage: "path to the SQLite database",
	},
	&cli.StringFlag{
		Name:  "stego-url",
		Value: "",
		Usage: "base URL of the steganography service",
	},
	&cli.StringFlag{
		Name:  "crypto-url",
		Value: "",
		Usage: "base URL of the image encryption service",
	},
	&cli.StringFlag{
		Name:  "token-secret",
		Value: "",
		Usage: "master secret for bearer token signing",
	},
	&cli.DurationFlag{
		Name:  "challenge-ttl",
		Value: 0,
		Usage: "lifetime of sign-in challenges (0 uses the config value)",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "secure-image-backend",
		Usage: "Serve the medical image concealment and anchoring API",
		Flags: flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig merges the optional TOML file with command line overrides.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := cCtx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if v := cCtx.String("listen-addr"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := cCtx.String("rpc-addr"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := cCtx.String("credential-contract"); v != "" {
		cfg.Ledger.CredentialContract = v
	}
	if v := cCtx.String("record-contract"); v != "" {
		cfg.Ledger.RecordContract = v
	}
	if v := cCtx.String("signer-key"); v != "" {
		cfg.Ledger.SignerKey = v
	}
	if v := cCtx.Int64("chain-id"); v != 0 {
		cfg.Ledger.ChainID = v
	}
	if v := cCtx.String("content-uri"); v != "" {
		cfg.Storage.ContentURI = v
	}
	if v := cCtx.String("cache-dir"); v != "" {
		cfg.Storage.CacheDir = v
	}
	if v := cCtx.String("db-path"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := cCtx.String("stego-url"); v != "" {
		cfg.Transform.StegoURL = v
	}
	if v := cCtx.String("crypto-url"); v != "" {
		cfg.Transform.CryptoURL = v
	}
	if v := cCtx.String("token-secret"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := cCtx.Duration("challenge-ttl"); v != 0 {
		cfg.Auth.ChallengeTTL = v.String()
	}
	cfg.Server.MetricsAddr = cCtx.String("metrics-addr")
	cfg.Server.EnablePprof = cCtx.Bool("pprof")
	cfg.Server.LogJSON = cCtx.Bool("log-json")
	cfg.Server.LogDebug = cCtx.Bool("log-debug")

	return cfg, cfg.Validate()
}

func run(cCtx *cli.Context) error {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cfg.Server.LogDebug,
		JSON:    cfg.Server.LogJSON,
		Service: common.PackageName,
		Version: common.Version,
	})

	if cCtx.Bool("log-uid") {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}

	// Connect to Ethereum
	logger.Info("Connecting to Ethereum RPC", "address", cfg.Ledger.RPCURL)
	ethClient, err := ethclient.Dial(cfg.Ledger.RPCURL)
	if err != nil {
		logger.Error("Failed to dial RPC", "err", err)
		return err
	}

	credLedger := ledger.NewCredentialLedgerClient(ethClient, ethClient,
		gethcommon.HexToAddress(cfg.Ledger.CredentialContract))
	recLedger := ledger.NewRecordLedgerClient(ethClient, ethClient,
		gethcommon.HexToAddress(cfg.Ledger.RecordContract))

	if cfg.Ledger.SignerKey != "" {
		if cfg.Ledger.ChainID == 0 {
			return errors.New("chain-id is required when a signer key is configured")
		}
		signerKey, err := crypto.HexToECDSA(cfg.Ledger.SignerKey)
		if err != nil {
			logger.Error("Failed to parse signer key", "err", err)
			return err
		}
		opts, err := bind.NewKeyedTransactorWithChainID(signerKey, big.NewInt(cfg.Ledger.ChainID))
		if err != nil {
			logger.Error("Failed to create transactor", "err", err)
			return err
		}
		credLedger.SetTransactOpts(opts)
		recLedger.SetTransactOpts(opts)
		logger.Info("Ledger writes enabled",
			"signer", crypto.PubkeyToAddress(signerKey.PublicKey).Hex())
	} else {
		logger.Warn("No signer key configured, ledger writes disabled")
	}

	// Content store and artifact cache
	contentStore, err := storage.NewFactory(logger).ContentStoreFor(cfg.Storage.ContentURI)
	if err != nil {
		logger.Error("Failed to create content store", "err", err)
		return err
	}
	cache, err := storage.NewFileArtifactCache(cfg.Storage.CacheDir, logger)
	if err != nil {
		logger.Error("Failed to create artifact cache", "err", err)
		return err
	}

	// Local document store
	db, err := docstore.New(cfg.Storage.DBPath, logger)
	if err != nil {
		logger.Error("Failed to open database", "err", err)
		return err
	}
	defer db.Close()

	// Auth service
	tokenExpiration, err := cfg.Auth.TokenExpirationDuration()
	if err != nil {
		return err
	}
	challengeTTL, err := cfg.Auth.ChallengeTTLDuration()
	if err != nil {
		return err
	}
	codec, err := token.NewCodec([]byte(cfg.Auth.TokenSecret), tokenExpiration)
	if err != nil {
		logger.Error("Failed to create token codec", "err", err)
		return err
	}
	issuer := auth.NewIssuer(auth.NewMemoryChallengeStore(challengeTTL), cfg.Auth.AppName)
	authSvc := auth.NewService(db, credLedger, issuer, codec, logger)

	// Pipeline
	transformClient := transform.NewClient(cfg.Transform.StegoURL, cfg.Transform.CryptoURL, logger)
	orch := pipeline.NewOrchestrator(contentStore, transformClient, cache, recLedger, db, logger)

	handler := httpserver.NewHandler(authSvc, orch, codec, logger)
	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.Server.ListenAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.Server.EnablePprof,
		DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             120 * time.Second,
	}, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server")
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
