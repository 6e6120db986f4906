// Package devnet wires the coordinator, verifier and game programs into a
// ledger under well-known addresses and drives its slot clock.
package devnet

import (
	"context"
	"time"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/game"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/oracle"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/Bren2010/kamui/verifier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Programs holds the addresses the programs are deployed at.
type Programs struct {
	Coordinator pubkey.Pubkey `json:"coordinator" yaml:"coordinator"`
	Verifier    pubkey.Pubkey `json:"verifier" yaml:"verifier"`
	Game        pubkey.Pubkey `json:"game" yaml:"game"`
}

// DefaultPrograms returns the addresses used when none are configured.
func DefaultPrograms() Programs {
	return Programs{
		Coordinator: pubkey.MustParse("BfwfooykCSdb1vgu6FcP75ncUgdcdt4ciUaeaSLzxM4D"),
		Verifier:    pubkey.MustParse("4qqRVYJAeBynm2yTydBkTJ9wVay3CrUfZ7gf9chtWS5Y"),
		Game:        pubkey.MustParse("5gSZAw9aDQYGJABr6guQqPRFzyX656BSoiEdhHaUzyh6"),
	}
}

// Register deploys every program into `l`. `admin` is the key allowed to
// manage oracles on the coordinator.
func Register(l *ledger.Ledger, programs Programs, admin pubkey.Pubkey) error {
	if err := l.RegisterProgram(programs.Coordinator, coordinator.New(programs.Coordinator, admin)); err != nil {
		return errors.Wrap(err, "registering coordinator")
	} else if err := l.RegisterProgram(programs.Verifier, verifier.Program{}); err != nil {
		return errors.Wrap(err, "registering verifier")
	} else if err := l.RegisterProgram(programs.Game, game.New(programs.Game, programs.Coordinator)); err != nil {
		return errors.Wrap(err, "registering game")
	}
	return nil
}

// Resolvers returns the callback account resolvers for the deployed
// consumer programs.
func Resolvers(programs Programs) map[pubkey.Pubkey]oracle.CallbackResolver {
	gameID := programs.Game
	return map[pubkey.Pubkey]oracle.CallbackResolver{
		gameID: func(ctx context.Context, req *structs.RandomnessRequest) ([]ledger.AccountMeta, error) {
			return game.CallbackAccounts(gameID, req.Requester)
		},
	}
}

// RunSlots advances `l` by one slot every `d` until ctx is cancelled.
func RunSlots(ctx context.Context, l *ledger.Ledger, d time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			slot, err := l.AdvanceSlot(1)
			if err != nil {
				return errors.Wrap(err, "advancing slot")
			}
			logger.Debug("advanced slot", zap.Uint64("slot", slot))
		}
	}
}
