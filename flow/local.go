package flow

import (
	"context"
	"time"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/db/memory"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/oracle"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Local is an in-memory ledger with the programs deployed, a registered
// oracle, and a slot clock.
type Local struct {
	Ledger   *ledger.Ledger
	Programs devnet.Programs
	Prover   *oracle.Prover
	VRFKey   []byte

	slotDuration time.Duration
	logger       *zap.Logger
}

func NewLocal(slotDuration time.Duration, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := ledger.New(memory.NewLedgerStore(), logger.Named("ledger"))
	programs := devnet.DefaultPrograms()
	admin, oracleKey := pubkey.NewKeypair(), pubkey.NewKeypair()

	if err := devnet.Register(l, programs, admin.Pubkey()); err != nil {
		return nil, err
	}
	for _, kp := range []*pubkey.Keypair{admin, oracleKey} {
		if err := l.Airdrop(kp.Pubkey(), 10*ledger.LamportsPerSol); err != nil {
			return nil, err
		}
	}

	vrfKey, err := ristretto255.NewPrivateKey(ristretto255.GeneratePrivateKey())
	if err != nil {
		return nil, err
	}
	var vrfPub [32]byte
	copy(vrfPub[:], vrfKey.PublicKey().Bytes())
	ix, err := coordinator.NewRegisterOracle(programs.Coordinator, admin.Pubkey(), oracleKey.Pubkey(), vrfPub)
	if err != nil {
		return nil, err
	}
	slot, err := l.Slot()
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTransaction(slot, []ledger.Instruction{ix}, admin)
	if err != nil {
		return nil, err
	} else if _, err := l.ProcessTransaction(context.Background(), tx); err != nil {
		return nil, errors.Wrap(err, "registering oracle")
	}

	prover, err := oracle.New(oracle.Config{
		Chain:         oracle.LocalChain{Ledger: l},
		CoordinatorID: programs.Coordinator,
		Keypair:       oracleKey,
		VrfKey:        vrfKey,
		Resolvers:     devnet.Resolvers(programs),
		PollInterval:  slotDuration,
		Logger:        logger.Named("oracle"),
	})
	if err != nil {
		return nil, err
	}

	return &Local{
		Ledger:   l,
		Programs: programs,
		Prover:   prover,
		VRFKey:   vrfPub[:],

		slotDuration: slotDuration,
		logger:       logger,
	}, nil
}

// Chain returns a Chain backed by the local ledger.
func (lc *Local) Chain() Chain { return localChain{oracle.LocalChain{Ledger: lc.Ledger}} }

// Run drives the slot clock and the oracle until ctx is cancelled.
func (lc *Local) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return devnet.RunSlots(gctx, lc.Ledger, lc.slotDuration, lc.logger.Named("slots")) })
	g.Go(func() error { return lc.Prover.Run(gctx) })
	return g.Wait()
}

type localChain struct {
	oracle.LocalChain
}

func (lc localChain) Airdrop(ctx context.Context, key pubkey.Pubkey, lamports uint64) error {
	return lc.Ledger.Airdrop(key, lamports)
}
