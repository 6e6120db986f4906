package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bren2010/kamui/db/memory"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHandler(t *testing.T) *Handler {
	l := ledger.New(memory.NewLedgerStore(), zaptest.NewLogger(t))
	require.NoError(t, devnet.Register(l, devnet.DefaultPrograms(), pubkey.NewUnique()))

	metrics := NewMetrics()
	seq := NewSequencer(l, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return &Handler{
		Ledger:    l,
		Sequencer: seq,
		Meta:      MetaResponse{Programs: devnet.DefaultPrograms(), Airdrop: true},
		Metrics:   metrics,
		Logger:    zaptest.NewLogger(t),
	}
}

func serve(h *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rw := httptest.NewRecorder()
	h.Router().ServeHTTP(rw, req)
	return rw
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) ErrorResponse {
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&out))
	return out
}

func TestHome(t *testing.T) {
	h := newHandler(t)
	rw := serve(h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rw.Code)

	h.HomeRedirect = "https://example.com/docs"
	rw = serve(h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, rw.Code)
	assert.Equal(t, "https://example.com/docs", rw.Header().Get("Location"))
}

func TestGetMeta(t *testing.T) {
	h := newHandler(t)
	h.Meta.VRFAlgorithm = VRFAlgorithm

	rw := serve(h, http.MethodGet, "/v1/meta", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))

	var meta MetaResponse
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&meta))
	assert.Equal(t, h.Meta, meta)
}

func TestGetAccountRejectsBadKey(t *testing.T) {
	h := newHandler(t)
	rw := serve(h, http.MethodGet, "/v1/accounts/not-a-key", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, decodeError(t, rw).Error, "invalid account key")
}

func TestGetLogsValidatesParameters(t *testing.T) {
	h := newHandler(t)

	rw := serve(h, http.MethodGet, "/v1/logs", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "[]\n", rw.Body.String())

	for _, path := range []string{"/v1/logs?since=-1", "/v1/logs?limit=0", "/v1/logs?limit=100000", "/v1/logs?limit=x"} {
		rw := serve(h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rw.Code, path)
	}
}

func TestPostTransactionRejectsMalformed(t *testing.T) {
	h := newHandler(t)

	rw := serve(h, http.MethodPost, "/v1/transactions", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = serve(h, http.MethodPost, "/v1/transactions", map[string]interface{}{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = serve(h, http.MethodPost, "/v1/transactions", TransactionRequest{Transaction: []byte{1, 2, 3}})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, decodeError(t, rw).Error, "malformed transaction")

	// A signature over a different message is rejected before sequencing.
	kp := pubkey.NewKeypair()
	tx, err := ledger.NewTransaction(0, []ledger.Instruction{ledger.Transfer(kp.Pubkey(), pubkey.NewUnique(), 1)}, kp)
	require.NoError(t, err)
	tx.Signatures[0][0] ^= 1
	buf := &bytes.Buffer{}
	require.NoError(t, tx.Marshal(buf))
	rw = serve(h, http.MethodPost, "/v1/transactions", TransactionRequest{Transaction: buf.Bytes()})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestPostTransactionAndMetrics(t *testing.T) {
	h := newHandler(t)
	kp := pubkey.NewKeypair()
	require.NoError(t, h.Ledger.Airdrop(kp.Pubkey(), 1000))

	tx, err := ledger.NewTransaction(0, []ledger.Instruction{ledger.Transfer(kp.Pubkey(), pubkey.NewUnique(), 10)}, kp)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, tx.Marshal(buf))

	rw := serve(h, http.MethodPost, "/v1/transactions", TransactionRequest{Transaction: buf.Bytes()})
	require.Equal(t, http.StatusOK, rw.Code)
	var receipt ledger.Receipt
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&receipt))
	assert.Equal(t, tx.ID(), receipt.TxID)

	// Replaying the same transaction is rejected.
	rw = serve(h, http.MethodPost, "/v1/transactions", TransactionRequest{Transaction: buf.Bytes()})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, decodeError(t, rw).Error, ledger.ErrAlreadyProcessed.Error())

	reg := prometheus.NewRegistry()
	require.NoError(t, h.Metrics.Register(reg))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.Metrics.txOps.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.Metrics.requestCtr.WithLabelValues("transactions", "200")))
}

func TestPostAirdrop(t *testing.T) {
	h := newHandler(t)
	key := pubkey.NewUnique()

	rw := serve(h, http.MethodPost, "/v1/airdrop", AirdropRequest{Pubkey: key, Lamports: 42})
	require.Equal(t, http.StatusOK, rw.Code)
	var acct ledger.Account
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&acct))
	assert.Equal(t, uint64(42), acct.Lamports)

	rw = serve(h, http.MethodPost, "/v1/airdrop", AirdropRequest{Pubkey: key, Lamports: maxAirdrop + 1})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	h.Meta.Airdrop = false
	rw = serve(h, http.MethodPost, "/v1/airdrop", AirdropRequest{Pubkey: key, Lamports: 42})
	assert.Equal(t, http.StatusForbidden, rw.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(t)
	rw := serve(h, http.MethodPost, "/v1/meta", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}
