package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/Bren2010/kamui/config"
	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/db/memory"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testAdminSeed  = "0101010101010101010101010101010101010101010101010101010101010101"
	testOracleSeed = "0202020202020202020202020202020202020202020202020202020202020202"
	testVRFKey     = "58ff3113e38280ef17b3e276c44d10ff05517309d0fe145cf66a09aefcc7bd03"
)

func testConfig(extra string) string {
	return fmt.Sprintf(`addr: "127.0.0.1:0"
api:
  admin-key: %q
  slot-duration: 10ms
  airdrop: true
%s`, testAdminSeed, extra)
}

func TestSetupOracle(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig(fmt.Sprintf(`oracle:
  signing-key: %q
  vrf-key: %q
`, testOracleSeed, testVRFKey))))
	require.NoError(t, err)

	l := ledger.New(memory.NewLedgerStore(), zaptest.NewLogger(t))
	programs := *cfg.APIConfig.Programs
	require.NoError(t, devnet.Register(l, programs, cfg.APIConfig.Admin().Pubkey()))

	ctx := context.Background()
	require.NoError(t, setupOracle(ctx, l, programs, cfg))
	// Running it again finds the oracle already registered.
	require.NoError(t, setupOracle(ctx, l, programs, cfg))

	oracleKey := cfg.OracleConfig.Keypair().Pubkey()
	configKey, _, err := coordinator.OracleConfigAddress(programs.Coordinator, oracleKey)
	require.NoError(t, err)
	acct, err := l.GetAccount(configKey)
	require.NoError(t, err)
	oc, err := structs.NewOracleConfig(acct.Data)
	require.NoError(t, err)
	assert.True(t, oc.IsActive)
	assert.Equal(t, oracleKey, oc.OracleKey)

	vrfKey, err := ristretto255.NewPrivateKey(hexDecode(t, testVRFKey))
	require.NoError(t, err)
	assert.Equal(t, vrfKey.PublicKey().Bytes(), oc.VrfKey[:])

	acct, err = l.GetAccount(oracleKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(oracleFloat), acct.Lamports)
}

func TestRunStops(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig(fmt.Sprintf(`metrics-addr: "127.0.0.1:0"
oracle:
  signing-key: %q
  vrf-key: %q
`, testOracleSeed, testVRFKey))))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, run(ctx, cfg, zaptest.NewLogger(t)))
}

func hexDecode(t *testing.T, s string) []byte {
	out, err := hex.DecodeString(s)
	require.NoError(t, err)
	return out
}
