// Command kamui-server is the main server process: it owns the ledger,
// sequences submitted transactions, advances slots, and optionally runs an
// oracle that fulfills randomness requests.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bren2010/kamui/api"
	"github.com/Bren2010/kamui/config"
	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/db"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/logging"
	"github.com/Bren2010/kamui/oracle"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// oracleFloat is the balance the in-process oracle is topped up to, to pay
// for result accounts.
const oracleFloat = 10 * ledger.LamportsPerSol

var (
	configFile = flag.String("config", "", "Location of config file.")
	logLevel   = flag.String("log-level", "", "Log level. Defaults to $"+logging.EnvVar+", then info.")
	jsonLogs   = flag.Bool("json", false, "Write logs as JSON.")
)

func main() {
	flag.Parse()

	level, err := logging.Level(*logLevel)
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(level, *jsonLogs)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load config from disk.
	if *configFile == "" {
		logger.Fatal("No config file provided, see --help.")
	}
	cfg, err := config.Read(*configFile)
	if err != nil {
		logger.Fatal("Failed to load config file", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func openStore(file string) (db.LedgerStore, error) {
	if file == "" {
		return db.NewLDBMemLedgerStore()
	}
	return db.NewLDBLedgerStore(file)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg.DatabaseFile)
	if err != nil {
		return err
	}
	l := ledger.New(store, logger.Named("ledger"))
	programs := *cfg.APIConfig.Programs
	admin := cfg.APIConfig.Admin()
	if err := devnet.Register(l, programs, admin.Pubkey()); err != nil {
		return err
	}

	meta := api.MetaResponse{
		SignatureAlgorithm: api.SignatureAlgorithm,
		VRFAlgorithm:       api.VRFAlgorithm,
		Programs:           programs,
		Admin:              admin.Pubkey(),
		SlotDurationMillis: cfg.APIConfig.SlotDuration.Milliseconds(),
		Airdrop:            cfg.APIConfig.Airdrop,
	}

	var prover *oracle.Prover
	if oc := cfg.OracleConfig; oc != nil {
		if err := setupOracle(ctx, l, programs, cfg); err != nil {
			return err
		}
		prover, err = oracle.New(oracle.Config{
			Chain:         oracle.LocalChain{Ledger: l},
			CoordinatorID: programs.Coordinator,
			Keypair:       oc.Keypair(),
			VrfKey:        oc.VRF(),
			Resolvers:     devnet.Resolvers(programs),
			PollInterval:  oc.PollInterval,
			Logger:        logger.Named("oracle"),
		})
		if err != nil {
			return err
		}
		oracleKey := oc.Keypair().Pubkey()
		meta.Oracle = &oracleKey
		meta.VRFKey = oc.VRF().PublicKey().Bytes()
	}

	metrics := api.NewMetrics()
	seq := api.NewSequencer(l, metrics)
	h := &api.Handler{
		Ledger:       l,
		Sequencer:    seq,
		Meta:         meta,
		Metrics:      metrics,
		Logger:       logger.Named("api"),
		HomeRedirect: cfg.APIConfig.HomeRedirect,
	}

	// Setup the API server.
	srv := &http.Server{
		Addr:      cfg.ServerAddr,
		Handler:   h.Router(),
		TLSConfig: cfg.TLS(),

		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	servers := []*http.Server{srv}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seq.Run(gctx) })
	g.Go(func() error {
		return devnet.RunSlots(gctx, l, cfg.APIConfig.SlotDuration, logger.Named("slots"))
	})
	if prover != nil {
		g.Go(func() error { return prover.Run(gctx) })
	}
	if cfg.MetricsAddr != "" {
		msrv, err := metricsServer(cfg.MetricsAddr, metrics, prover)
		if err != nil {
			return err
		}
		servers = append(servers, msrv)
		g.Go(func() error {
			logger.Info("Starting metrics server", zap.String("addr", msrv.Addr))
			return serve(msrv.ListenAndServe())
		})
	}
	g.Go(func() error {
		logger.Info("Starting API server", zap.String("addr", srv.Addr), zap.Bool("tls", cfg.TLS() != nil))
		if cfg.TLS() == nil {
			return serve(srv.ListenAndServe())
		}
		return serve(srv.ListenAndServeTLS("", ""))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shut down server", zap.String("addr", s.Addr), zap.Error(err))
			}
		}
		return nil
	})

	return g.Wait()
}

func serve(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// setupOracle registers the configured oracle with the coordinator if it
// isn't already, and makes sure it can pay for result accounts.
func setupOracle(ctx context.Context, l *ledger.Ledger, programs devnet.Programs, cfg *config.Config) error {
	oc := cfg.OracleConfig
	oracleKey := oc.Keypair().Pubkey()

	acct, err := l.GetAccount(oracleKey)
	if err != nil {
		return err
	} else if acct.Lamports < oracleFloat {
		if err := l.Airdrop(oracleKey, oracleFloat-acct.Lamports); err != nil {
			return err
		}
	}

	var vrfKey [32]byte
	copy(vrfKey[:], oc.VRF().PublicKey().Bytes())

	configKey, _, err := coordinator.OracleConfigAddress(programs.Coordinator, oracleKey)
	if err != nil {
		return err
	}
	if acct, err = l.GetAccount(configKey); err != nil {
		return err
	} else if acct.Owner == programs.Coordinator {
		existing, err := structs.NewOracleConfig(acct.Data)
		if err == nil && existing.IsActive && existing.VrfKey == vrfKey {
			return nil
		}
	}

	admin := cfg.APIConfig.Admin()
	if acct, err = l.GetAccount(admin.Pubkey()); err != nil {
		return err
	} else if acct.Lamports < ledger.LamportsPerSol {
		if err := l.Airdrop(admin.Pubkey(), ledger.LamportsPerSol); err != nil {
			return err
		}
	}
	ix, err := coordinator.NewRegisterOracle(programs.Coordinator, admin.Pubkey(), oracleKey, vrfKey)
	if err != nil {
		return err
	}
	slot, err := l.Slot()
	if err != nil {
		return err
	}
	tx, err := ledger.NewTransaction(slot, []ledger.Instruction{ix}, admin)
	if err != nil {
		return err
	}
	_, err = l.ProcessTransaction(ctx, tx)
	return err
}
