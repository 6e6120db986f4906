package oracle

import (
	"context"

	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

// Chain is the view of the ledger the prover works against.
type Chain interface {
	SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error)
	Logs(ctx context.Context, since uint64, limit int) ([]ledger.LogEntry, error)
	GetAccount(ctx context.Context, key pubkey.Pubkey) (*ledger.Account, error)
	Slot(ctx context.Context) (uint64, error)
}

// LocalChain adapts an in-process ledger to the Chain interface.
type LocalChain struct {
	Ledger *ledger.Ledger
}

func (lc LocalChain) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	return lc.Ledger.ProcessTransaction(ctx, tx)
}

func (lc LocalChain) Logs(ctx context.Context, since uint64, limit int) ([]ledger.LogEntry, error) {
	return lc.Ledger.Logs(since, limit)
}

func (lc LocalChain) GetAccount(ctx context.Context, key pubkey.Pubkey) (*ledger.Account, error) {
	return lc.Ledger.GetAccount(key)
}

func (lc LocalChain) Slot(ctx context.Context) (uint64, error) {
	return lc.Ledger.Slot()
}
