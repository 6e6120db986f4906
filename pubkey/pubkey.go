// Package pubkey implements account addresses: base58 encoding, program
// derived addresses, and the ed25519 keypairs that sign transactions.
package pubkey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	Size = 32

	MaxSeeds      = 16
	MaxSeedLength = 32
)

var pdaMarker = []byte("ProgramDerivedAddress")

// Pubkey is the address of an account.
type Pubkey [Size]byte

// Zero is the all-zero address, also the system program's id.
var Zero Pubkey

func FromBytes(raw []byte) (Pubkey, error) {
	var out Pubkey
	if len(raw) != Size {
		return out, fmt.Errorf("pubkey is wrong size: wanted=%v, got=%v", Size, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Parse decodes a base58 address.
func Parse(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("failed to decode pubkey: %v", err)
	}
	return FromBytes(raw)
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) Pubkey {
	pk, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (pk Pubkey) String() string { return base58.Encode(pk[:]) }
func (pk Pubkey) Bytes() []byte  { return append([]byte{}, pk[:]...) }
func (pk Pubkey) IsZero() bool   { return pk == Zero }

func (pk Pubkey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

func (pk *Pubkey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (pk Pubkey) MarshalYAML() (interface{}, error) { return pk.String(), nil }

func (pk *Pubkey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// IsOnCurve returns true if the address is a valid ed25519 point, meaning a
// private key may exist for it.
func IsOnCurve(raw []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// CreateProgramAddress derives an address from seeds and a program id. An
// error is returned if the result lands on the curve.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Zero, errors.New("too many seeds for program address")
	}
	buf := &bytes.Buffer{}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, errors.New("seed is too long for program address")
		}
		buf.Write(seed)
	}
	buf.Write(program[:])
	buf.Write(pdaMarker)

	hash := sha256.Sum256(buf.Bytes())
	if IsOnCurve(hash[:]) {
		return Zero, errors.New("program address lands on the curve")
	}
	return Pubkey(hash), nil
}

// FindProgramAddress searches for the highest bump seed that produces a valid
// program address. Bumps run from 255 down to 1.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	return findProgramAddress(seeds, program, CreateProgramAddress)
}

func findProgramAddress(seeds [][]byte, program Pubkey, create func([][]byte, Pubkey) (Pubkey, error)) (Pubkey, uint8, error) {
	withBump := append(append([][]byte{}, seeds...), nil)
	for bump := 255; bump >= 1; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := create(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		} else if len(seeds) >= MaxSeeds {
			return Zero, 0, err
		}
	}
	return Zero, 0, errors.New("unable to find a viable program address bump seed")
}

var uniqueCounter uint64

// NewUnique returns a fresh address. Intended for tests and program ids.
func NewUnique() Pubkey {
	var out Pubkey
	n := atomic.AddUint64(&uniqueCounter, 1)
	binary.BigEndian.PutUint64(out[:8], n)
	if _, err := rand.Read(out[8:]); err != nil {
		panic(err)
	}
	return out
}

// Keypair is an ed25519 signing key whose public half is an account address.
type Keypair struct {
	priv ed25519.PrivateKey
}

func NewKeypair() *Keypair {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &Keypair{priv: priv}
}

// KeypairFromSeed builds a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keypair seed is wrong size: wanted=%v, got=%v", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (kp *Keypair) Pubkey() Pubkey {
	var out Pubkey
	copy(out[:], kp.priv.Public().(ed25519.PublicKey))
	return out
}

func (kp *Keypair) Seed() []byte { return kp.priv.Seed() }

func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.priv, message)
}

// Verify checks an ed25519 signature made by the owner of pk.
func Verify(pk Pubkey, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig)
}
