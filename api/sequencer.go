package api

import (
	"context"
	"time"

	"github.com/Bren2010/kamui/ledger"
)

type submitRequest struct {
	ctx  context.Context
	tx   *ledger.Transaction
	resp chan<- submitResponse
}

type submitResponse struct {
	Receipt *ledger.Receipt
	Err     error
}

// Sequencer applies submitted transactions to a ledger in the order they are
// received.
type Sequencer struct {
	ledger  *ledger.Ledger
	metrics *Metrics
	ch      chan submitRequest
}

func NewSequencer(l *ledger.Ledger, metrics *Metrics) *Sequencer {
	return &Sequencer{ledger: l, metrics: metrics, ch: make(chan submitRequest)}
}

// Run receives transactions until ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.ch:
			start := time.Now()
			receipt, err := s.ledger.ProcessTransaction(req.ctx, req.tx)
			s.metrics.observeTransaction(start, err)

			select {
			case req.resp <- submitResponse{receipt, err}:
			default:
			}
		}
	}
}

// Submit queues `tx` and waits for it to be processed.
func (s *Sequencer) Submit(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	resp := make(chan submitResponse, 1)
	select {
	case s.ch <- submitRequest{ctx: ctx, tx: tx, resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Receipt, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
