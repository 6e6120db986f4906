// Package oracle implements the prover: it follows coordinator events, waits
// for each request to be confirmed, and fulfills it with a VRF proof.
package oracle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 5
	defaultConcurrency  = 4

	logBatch = 500
)

// CallbackResolver returns the accounts a callback program needs, after the
// result and request accounts the coordinator always passes.
type CallbackResolver func(ctx context.Context, req *structs.RandomnessRequest) ([]ledger.AccountMeta, error)

type Config struct {
	Chain         Chain
	CoordinatorID pubkey.Pubkey
	Keypair       *pubkey.Keypair
	VrfKey        *ristretto255.PrivateKey

	// Resolvers maps callback programs to the resolver of their accounts.
	// Callbacks of programs without a resolver get no extra accounts.
	Resolvers map[pubkey.Pubkey]CallbackResolver

	PollInterval time.Duration
	MaxAttempts  int
	Concurrency  int
	// StartLog is the first log sequence number to read.
	StartLog uint64

	Logger *zap.Logger
}

type pendingRequest struct {
	id       pubkey.Pubkey
	attempts int
}

// Prover fulfills randomness requests. It is not safe to call Poll
// concurrently with itself.
type Prover struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	cursor  uint64
	pending map[pubkey.Pubkey]*pendingRequest

	fulfilled atomic.Uint64
	failed    atomic.Uint64
}

func New(cfg Config) (*Prover, error) {
	if cfg.Chain == nil {
		return nil, errors.New("oracle: no chain provided")
	} else if cfg.Keypair == nil || cfg.VrfKey == nil {
		return nil, errors.New("oracle: keys not provided")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Prover{
		cfg: cfg,
		logger: cfg.Logger.With(
			zap.Stringer("oracle", cfg.Keypair.Pubkey()),
			zap.Stringer("coordinator", cfg.CoordinatorID),
		),
		cursor:  cfg.StartLog,
		pending: make(map[pubkey.Pubkey]*pendingRequest),
	}, nil
}

// Pending returns the number of requests waiting to be fulfilled.
func (p *Prover) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Fulfilled returns the number of requests this prover has fulfilled.
func (p *Prover) Fulfilled() uint64 { return p.fulfilled.Load() }

// Failed returns the number of fulfillment attempts that were rejected.
func (p *Prover) Failed() uint64 { return p.failed.Load() }

// Run polls until ctx is cancelled.
func (p *Prover) Run(ctx context.Context) error {
	p.logger.Info("starting prover", zap.Duration("interval", p.cfg.PollInterval))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("stopping prover")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads new events and fulfills every request that is ready.
func (p *Prover) Poll(ctx context.Context) error {
	if err := p.readEvents(ctx); err != nil {
		return err
	}
	slot, err := p.cfg.Chain.Slot(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	ids := make([]pubkey.Pubkey, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			p.process(gctx, id, slot)
			return nil
		})
	}
	return g.Wait()
}

func (p *Prover) readEvents(ctx context.Context) error {
	for {
		entries, err := p.cfg.Chain.Logs(ctx, p.cursor, logBatch)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			p.handleLine(entry.Line)
			p.cursor = entry.Seq + 1
		}
		if len(entries) < logBatch {
			return nil
		}
	}
}

func (p *Prover) handleLine(line string) {
	ev, err := structs.ParseEvent(line)
	if err != nil {
		p.logger.Warn("skipping malformed event", zap.Error(err))
		return
	} else if ev == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev := ev.(type) {
	case *structs.RandomnessRequested:
		if _, ok := p.pending[ev.RequestID]; !ok {
			p.logger.Info("randomness requested",
				zap.Stringer("request", ev.RequestID),
				zap.Stringer("requester", ev.Requester),
			)
			p.pending[ev.RequestID] = &pendingRequest{id: ev.RequestID}
		}
	case *structs.RandomnessFulfilled:
		delete(p.pending, ev.RequestID)
	case *structs.RequestCancelled:
		delete(p.pending, ev.RequestID)
	}
}

func (p *Prover) drop(id pubkey.Pubkey) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Prover) process(ctx context.Context, id pubkey.Pubkey, slot uint64) {
	logger := p.logger.With(zap.Stringer("request", id))

	acct, err := p.cfg.Chain.GetAccount(ctx, id)
	if err != nil {
		logger.Warn("failed to load request", zap.Error(err))
		return
	} else if acct.Owner != p.cfg.CoordinatorID {
		logger.Warn("request account not owned by coordinator")
		p.drop(id)
		return
	}
	req, err := structs.NewRandomnessRequest(acct.Data)
	if err != nil {
		logger.Warn("failed to decode request", zap.Error(err))
		p.drop(id)
		return
	}

	switch {
	case req.Status != structs.StatusPending:
		p.drop(id)
		return
	case slot >= req.ExpiredAt():
		logger.Warn("request expired before fulfillment", zap.Uint64("slot", slot))
		p.drop(id)
		return
	case slot < req.ReadyAt():
		logger.Debug("waiting for confirmations", zap.Uint64("slot", slot), zap.Uint64("ready", req.ReadyAt()))
		return
	}

	if err := p.fulfill(ctx, id, req); err != nil {
		p.failed.Add(1)
		p.mu.Lock()
		defer p.mu.Unlock()
		pr, ok := p.pending[id]
		if !ok {
			return
		}
		pr.attempts++
		logger.Warn("fulfillment failed", zap.Int("attempt", pr.attempts), zap.Error(err))
		if pr.attempts >= p.cfg.MaxAttempts {
			logger.Error("giving up on request")
			delete(p.pending, id)
		}
		return
	}

	p.fulfilled.Add(1)
	p.drop(id)
	logger.Info("fulfilled request", zap.Uint32("words", req.NumWords))
}

func (p *Prover) fulfill(ctx context.Context, id pubkey.Pubkey, req *structs.RandomnessRequest) error {
	_, proof := p.cfg.VrfKey.Prove(req.Commitment[:])

	var extra []ledger.AccountMeta
	if req.HasCallback() {
		if resolve, ok := p.cfg.Resolvers[req.CallbackProgram]; ok {
			var err error
			if extra, err = resolve(ctx, req); err != nil {
				return err
			}
		}
	}

	ix, err := coordinator.NewFulfillRandomness(p.cfg.CoordinatorID, p.cfg.Keypair.Pubkey(), id, req,
		proof, p.cfg.VrfKey.PublicKey().Bytes(), extra...)
	if err != nil {
		return err
	}
	slot, err := p.cfg.Chain.Slot(ctx)
	if err != nil {
		return err
	}
	tx, err := ledger.NewTransaction(slot, []ledger.Instruction{ix}, p.cfg.Keypair)
	if err != nil {
		return err
	}
	_, err = p.cfg.Chain.SubmitTransaction(ctx, tx)
	return err
}
