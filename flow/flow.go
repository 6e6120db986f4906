// Package flow implements the end-to-end VRF scenario: a subscription is
// created and funded, the game requests a number, an oracle fulfills the
// request, and the game consumes the randomness through its callback.
package flow

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/game"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/oracle"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	payerFunds        = 10 * ledger.LamportsPerSol
	ownerFunds        = 10_000_000
	subscriptionFee   = 1_000_000
	subscriptionFunds = 5_000_000
)

// Chain is a ledger the scenario can submit to and request airdrops from.
type Chain interface {
	oracle.Chain
	Airdrop(ctx context.Context, key pubkey.Pubkey, lamports uint64) error
}

type Config struct {
	Chain    Chain
	Programs devnet.Programs
	// VRFKey, if set, is the public key the fulfilling oracle is expected to
	// prove with. The proof stored on the ledger is checked against it.
	VRFKey []byte

	PollInterval time.Duration
	Logger       *zap.Logger
}

type Result struct {
	Subscription pubkey.Pubkey
	Request      pubkey.Pubkey
	Randomness   [structs.RandomnessSize]byte
	Number       uint8
}

type scenario struct {
	Config
	ctx   context.Context
	payer *pubkey.Keypair
}

// Run executes the scenario. It blocks until the request is fulfilled, so ctx
// should carry a deadline.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Chain == nil {
		return nil, errors.New("flow: no chain provided")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &scenario{Config: cfg, ctx: ctx, payer: pubkey.NewKeypair()}
	return s.run()
}

func (s *scenario) submit(ix ledger.Instruction, err error, signers ...*pubkey.Keypair) error {
	if err != nil {
		return err
	}
	slot, err := s.Chain.Slot(s.ctx)
	if err != nil {
		return err
	}
	tx, err := ledger.NewTransaction(slot, []ledger.Instruction{ix}, signers...)
	if err != nil {
		return err
	}
	receipt, err := s.Chain.SubmitTransaction(s.ctx, tx)
	if receipt != nil {
		for _, line := range receipt.Logs {
			s.Logger.Debug(line, zap.String("tx", receipt.TxID))
		}
	}
	return err
}

func (s *scenario) fund(to pubkey.Pubkey, lamports uint64) error {
	return s.submit(ledger.Transfer(s.payer.Pubkey(), to, lamports), nil, s.payer)
}

func (s *scenario) account(key pubkey.Pubkey) (*ledger.Account, error) {
	acct, err := s.Chain.GetAccount(s.ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "loading account %v", key)
	}
	return acct, nil
}

func (s *scenario) subscription(key pubkey.Pubkey) (*structs.Subscription, error) {
	acct, err := s.account(key)
	if err != nil {
		return nil, err
	} else if acct.Owner != s.Programs.Coordinator {
		return nil, fmt.Errorf("subscription is owned by %v", acct.Owner)
	}
	return structs.NewSubscription(acct.Data)
}

func (s *scenario) gameState(key pubkey.Pubkey) (*game.State, error) {
	acct, err := s.account(key)
	if err != nil {
		return nil, err
	} else if acct.Owner != s.Programs.Game {
		return nil, fmt.Errorf("game state is owned by %v", acct.Owner)
	}
	return game.NewState(acct.Data)
}

func (s *scenario) run() (*Result, error) {
	log := s.Logger

	log.Info("Funding payer...", zap.Stringer("payer", s.payer.Pubkey()))
	if err := s.Chain.Airdrop(s.ctx, s.payer.Pubkey(), payerFunds); err != nil {
		return nil, errors.Wrap(err, "airdrop")
	}

	// Step 1: create and fund a subscription.
	log.Info("Creating VRF subscription...")
	owner, subKey := pubkey.NewKeypair(), pubkey.NewKeypair()
	if err := s.fund(owner.Pubkey(), ownerFunds); err != nil {
		return nil, errors.Wrap(err, "funding subscription owner")
	}
	ix, err := coordinator.NewCreateSubscription(s.Programs.Coordinator, owner.Pubkey(), subKey.Pubkey(), subscriptionFee, 1)
	if err := s.submit(ix, err, owner, subKey); err != nil {
		return nil, errors.Wrap(err, "creating subscription")
	}
	ix, err = coordinator.NewFundSubscription(s.Programs.Coordinator, owner.Pubkey(), subKey.Pubkey(), subscriptionFunds)
	if err := s.submit(ix, err, owner); err != nil {
		return nil, errors.Wrap(err, "funding subscription")
	}
	sub, err := s.subscription(subKey.Pubkey())
	if err != nil {
		return nil, err
	} else if sub.Owner != owner.Pubkey() || sub.Balance != subscriptionFunds {
		return nil, fmt.Errorf("unexpected subscription state: owner=%v balance=%d", sub.Owner, sub.Balance)
	}
	log.Info("Subscription created", zap.Stringer("subscription", subKey.Pubkey()), zap.Uint64("balance", sub.Balance))

	// Step 2: initialize the game.
	log.Info("Initializing game...")
	player := pubkey.NewKeypair()
	if err := s.fund(player.Pubkey(), ownerFunds); err != nil {
		return nil, errors.Wrap(err, "funding game owner")
	}
	ix, err = game.NewInitialize(s.Programs.Game, player.Pubkey(), subKey.Pubkey(), player.Pubkey())
	if err := s.submit(ix, err, player); err != nil {
		return nil, errors.Wrap(err, "initializing game")
	}
	stateKey, _, err := game.StateAddress(s.Programs.Game, player.Pubkey())
	if err != nil {
		return nil, err
	}
	state, err := s.gameState(stateKey)
	if err != nil {
		return nil, err
	} else if state.IsPending {
		return nil, errors.New("game is pending before any request")
	}

	// Step 3: request a random number.
	log.Info("Requesting random number...")
	ix, request, err := game.NewRequestNewNumber(s.Programs.Game, s.Programs.Coordinator, player.Pubkey(), subKey.Pubkey(), sub.Nonce)
	if err := s.submit(ix, err, player); err != nil {
		return nil, errors.Wrap(err, "requesting random number")
	}
	if state, err = s.gameState(stateKey); err != nil {
		return nil, err
	} else if !state.IsPending || state.PendingRequest != request {
		return nil, errors.New("game is not pending on the request")
	}

	// Step 4: wait for an oracle to fulfill it.
	log.Info("Waiting for fulfillment...", zap.Stringer("request", request))
	if state, err = s.waitForNumber(stateKey); err != nil {
		return nil, err
	}
	result, err := s.checkFulfillment(request)
	if err != nil {
		return nil, err
	}
	expected := uint8(binary.LittleEndian.Uint64(result.Randomness[0][:8])%100) + 1
	if state.CurrentNumber != expected {
		return nil, fmt.Errorf("game drew %d, expected %d from the stored randomness", state.CurrentNumber, expected)
	}

	log.Info("VRF flow completed", zap.Uint8("number", state.CurrentNumber))
	return &Result{
		Subscription: subKey.Pubkey(),
		Request:      request,
		Randomness:   result.Randomness[0],
		Number:       state.CurrentNumber,
	}, nil
}

func (s *scenario) waitForNumber(stateKey pubkey.Pubkey) (*game.State, error) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		state, err := s.gameState(stateKey)
		if err != nil {
			return nil, err
		} else if !state.IsPending {
			if state.CurrentNumber < 1 || state.CurrentNumber > 100 {
				return nil, fmt.Errorf("game drew out of range number %d", state.CurrentNumber)
			}
			return state, nil
		}
		select {
		case <-s.ctx.Done():
			return nil, errors.Wrap(s.ctx.Err(), "waiting for fulfillment")
		case <-ticker.C:
		}
	}
}

func (s *scenario) checkFulfillment(request pubkey.Pubkey) (*structs.VrfResult, error) {
	acct, err := s.account(request)
	if err != nil {
		return nil, err
	}
	req, err := structs.NewRandomnessRequest(acct.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding request")
	} else if req.Status != structs.StatusFulfilled {
		return nil, fmt.Errorf("request status is %v", req.Status)
	}

	resultKey, _, err := coordinator.VrfResultAddress(s.Programs.Coordinator, request)
	if err != nil {
		return nil, err
	}
	if acct, err = s.account(resultKey); err != nil {
		return nil, err
	}
	result, err := structs.NewVrfResult(acct.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding vrf result")
	} else if len(result.Randomness) != int(req.NumWords) {
		return nil, fmt.Errorf("expected %d random words, got %d", req.NumWords, len(result.Randomness))
	}

	if s.VRFKey != nil {
		pk, err := ristretto255.NewPublicKey(s.VRFKey)
		if err != nil {
			return nil, errors.Wrap(err, "parsing vrf key")
		}
		output, err := pk.Verify(req.Commitment[:], result.Proof)
		if err != nil {
			return nil, errors.Wrap(err, "verifying stored proof")
		}
		if coordinator.DeriveRandomness(output, req.NumWords)[0] != result.Randomness[0] {
			return nil, errors.New("stored randomness does not match proof")
		}
	}
	return result, nil
}
