package flow

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bren2010/kamui/api"
	"github.com/Bren2010/kamui/client"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startLocal(t *testing.T) (*Local, func()) {
	local, err := NewLocal(5*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- local.Run(ctx) }()

	return local, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestLocalFlow(t *testing.T) {
	local, stop := startLocal(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := Run(ctx, Config{
		Chain:        local.Chain(),
		Programs:     local.Programs,
		VRFKey:       local.VRFKey,
		PollInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Number, uint8(1))
	assert.LessOrEqual(t, res.Number, uint8(100))
	assert.Equal(t, uint64(1), local.Prover.Fulfilled())
}

func TestFlowOverHTTP(t *testing.T) {
	local, stop := startLocal(t)
	defer stop()

	seq := api.NewSequencer(local.Ledger, api.NewMetrics())
	seqCtx, seqCancel := context.WithCancel(context.Background())
	seqDone := make(chan error, 1)
	go func() { seqDone <- seq.Run(seqCtx) }()
	defer func() {
		seqCancel()
		require.NoError(t, <-seqDone)
	}()

	h := &api.Handler{
		Ledger:    local.Ledger,
		Sequencer: seq,
		Meta:      api.MetaResponse{Programs: local.Programs, Airdrop: true},
		Logger:    zaptest.NewLogger(t),
	}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	c, err := client.New(srv.URL, srv.Client())
	require.NoError(t, err)
	meta, err := c.Meta(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := Run(ctx, Config{
		Chain:        c,
		Programs:     meta.Programs,
		VRFKey:       local.VRFKey,
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEqual(t, pubkey.Zero, res.Request)
	assert.Equal(t, devnet.DefaultPrograms(), meta.Programs)
}

func TestFlowTimesOutWithoutOracle(t *testing.T) {
	local, err := NewLocal(5*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, Config{Chain: local.Chain(), Programs: local.Programs, PollInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
