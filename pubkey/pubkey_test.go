package pubkey

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func sequential() Pubkey {
	var out Pubkey
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func TestBase58(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", Zero.String())

	program := sequential()
	assert.Equal(t, "1thX6LZfHDZZKUs92febYZhYRcXddmzfzF2NvTkPNE", program.String())

	parsed, err := Parse(program.String())
	require.NoError(t, err)
	assert.Equal(t, program, parsed)

	_, err = Parse("1hfJiz6J")
	assert.Error(t, err, "short addresses must be rejected")
	_, err = Parse("0OIl")
	assert.Error(t, err, "invalid alphabet must be rejected")
}

func TestJSON(t *testing.T) {
	pk := NewUnique()
	raw, err := json.Marshal(map[string]Pubkey{"key": pk})
	require.NoError(t, err)

	var decoded map[string]Pubkey
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, pk, decoded["key"])
}

func TestYAML(t *testing.T) {
	type doc struct {
		Key Pubkey `yaml:"key"`
	}
	raw, err := yaml.Marshal(doc{Key: sequential()})
	require.NoError(t, err)
	assert.Contains(t, string(raw), sequential().String())

	var parsed doc
	require.NoError(t, yaml.Unmarshal(raw, &parsed))
	assert.Equal(t, sequential(), parsed.Key)

	assert.Error(t, yaml.Unmarshal([]byte("key: not-base58!"), &parsed))
}

func TestFindProgramAddress(t *testing.T) {
	program := sequential()
	var owner Pubkey
	for i := range owner {
		owner[i] = 7
	}

	addr, bump, err := FindProgramAddress([][]byte{[]byte("game_state"), owner[:]}, program)
	require.NoError(t, err)
	assert.Equal(t, uint8(252), bump)
	assert.Equal(t, "DvABsaLsNWxhtCKdoiVpqq1id6uyu1919pdnDCHgJ9mw", addr.String())
	assert.False(t, IsOnCurve(addr[:]))

	again, err := CreateProgramAddress([][]byte{[]byte("game_state"), owner[:], {bump}}, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	addr, bump, err = FindProgramAddress([][]byte{[]byte("request"), owner[:], make([]byte, 8)}, program)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), bump)
	assert.Equal(t, "5m1anwE5BsHpUjDe6z2MjrgzJz3zGz8xYCjh26WZVNSF", addr.String())
}

func TestFindProgramAddressSkipsBumpZero(t *testing.T) {
	var tried []uint8
	onCurve := func(seeds [][]byte, program Pubkey) (Pubkey, error) {
		tried = append(tried, seeds[len(seeds)-1][0])
		return Zero, errors.New("program address lands on the curve")
	}
	_, _, err := findProgramAddress([][]byte{[]byte("seed")}, NewUnique(), onCurve)
	assert.Error(t, err)
	require.Len(t, tried, 255)
	assert.Equal(t, uint8(255), tried[0])
	assert.Equal(t, uint8(1), tried[254])

	// The first bump off the curve wins.
	tried = nil
	want := NewUnique()
	addr, bump, err := findProgramAddress([][]byte{[]byte("seed")}, NewUnique(), func(seeds [][]byte, program Pubkey) (Pubkey, error) {
		if b := seeds[len(seeds)-1][0]; b > 1 {
			return onCurve(seeds, program)
		}
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), bump)
	assert.Equal(t, want, addr)
}

func TestCreateProgramAddressLimits(t *testing.T) {
	program := NewUnique()
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLength+1)}, program)
	assert.Error(t, err)

	seeds := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(seeds, program)
	assert.Error(t, err)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), program)
	assert.Error(t, err)
}

func TestKeypair(t *testing.T) {
	kp := NewKeypair()
	assert.True(t, IsOnCurve(kp.Pubkey().Bytes()))

	sig := kp.Sign([]byte("message"))
	assert.True(t, Verify(kp.Pubkey(), []byte("message"), sig))
	assert.False(t, Verify(kp.Pubkey(), []byte("other"), sig))
	assert.False(t, Verify(NewKeypair().Pubkey(), []byte("message"), sig))

	restored, err := KeypairFromSeed(kp.Seed())
	require.NoError(t, err)
	assert.Equal(t, kp.Pubkey(), restored.Pubkey())

	_, err = KeypairFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestNewUnique(t *testing.T) {
	a, b := NewUnique(), NewUnique()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}
