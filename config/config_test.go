package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/Bren2010/kamui/devnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
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

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testConfig("")))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.APIConfig.SlotDuration)
	assert.Equal(t, devnet.DefaultPrograms(), *cfg.APIConfig.Programs)
	assert.NotNil(t, cfg.APIConfig.Admin())
	assert.Nil(t, cfg.OracleConfig)
	assert.Nil(t, cfg.TLS())

	cfg, err = Parse([]byte(testConfig(fmt.Sprintf(`oracle:
  signing-key: %q
  vrf-key: %q
`, testOracleSeed, testVRFKey))))
	require.NoError(t, err)
	require.NotNil(t, cfg.OracleConfig)
	assert.Equal(t, 10*time.Millisecond, cfg.OracleConfig.PollInterval)
	assert.NotNil(t, cfg.OracleConfig.Keypair())
	assert.Equal(t, "aac27ae1424168bf72eb98f1a7f701fec16e0880e179905cefbd155ec446b326",
		fmt.Sprintf("%x", cfg.OracleConfig.VRF().PublicKey().Bytes()))
}

func TestParseErrors(t *testing.T) {
	testCases := map[string]string{
		"missing addr":     "api: {admin-key: " + testAdminSeed + ", slot-duration: 1s}",
		"missing api":      `addr: ":8080"`,
		"missing admin":    "addr: \":8080\"\napi: {slot-duration: 1s}",
		"missing slots":    "addr: \":8080\"\napi: {admin-key: " + testAdminSeed + "}",
		"bad admin":        "addr: \":8080\"\napi: {admin-key: abcd, slot-duration: 1s}",
		"unknown field":    testConfig("unknown: 1"),
		"bad vrf key":      testConfig("oracle: {signing-key: " + testOracleSeed + ", vrf-key: " + testOracleSeed[:10] + "}"),
		"missing vrf key":  testConfig("oracle: {signing-key: " + testOracleSeed + "}"),
		"missing tls cert": testConfig("tls: {cert: /nonexistent, key: /nonexistent, client-ca: /nonexistent}"),
	}
	for name, raw := range testCases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	programs := devnet.DefaultPrograms()
	cfg := &Config{
		ServerAddr:  ":8080",
		MetricsAddr: ":8081",
		APIConfig: &APIConfig{
			AdminKey:     testAdminSeed,
			Programs:     &programs,
			SlotDuration: 400 * time.Millisecond,
			Airdrop:      true,
		},
		OracleConfig: &OracleConfig{
			SigningKey:   testOracleSeed,
			VRFKey:       testVRFKey,
			PollInterval: time.Second,
		},
	}
	raw, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg.ServerAddr, parsed.ServerAddr)
	assert.Equal(t, cfg.MetricsAddr, parsed.MetricsAddr)
	assert.Equal(t, programs, *parsed.APIConfig.Programs)
	assert.Equal(t, 400*time.Millisecond, parsed.APIConfig.SlotDuration)
	assert.True(t, parsed.APIConfig.Airdrop)
	assert.Equal(t, time.Second, parsed.OracleConfig.PollInterval)
	assert.Equal(t, cfg.APIConfig.AdminKey, fmt.Sprintf("%x", parsed.APIConfig.Admin().Seed()))
}
