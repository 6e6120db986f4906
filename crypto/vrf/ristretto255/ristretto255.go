// Package ristretto255 implements an ECVRF over the Ristretto255 group with
// SHA-512, following the structure of RFC 9381 with the suite string
// "sol_vrf". Proofs are 80 bytes and outputs are 64 bytes.
package ristretto255

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"errors"

	"github.com/Bren2010/kamui/crypto/vrf"
	"github.com/gtank/ristretto255"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = 32
	ProofSize      = 32 + challengeSize + 32
	OutputSize     = sha512.Size

	challengeSize = 16
)

var (
	suiteString = []byte("sol_vrf")
	encodeDST   = []byte("ECVRF_ristretto255_XMD:SHA-512_R255MAP_RO_sol_vrf")
)

// expandMessage computes the first block of expand_message_xmd with SHA-512
// over `m`, for a 64 byte output. The DST length byte directly follows the
// output length, without the zero byte that separates them in RFC 9380.
func expandMessage(m []byte) []byte {
	h := sha512.New()
	h.Write(make([]byte, sha512.BlockSize)) // Z_pad
	h.Write(m)
	h.Write([]byte{0x00, 0x40}) // Output length
	h.Write(encodeDST)
	h.Write([]byte{byte(len(encodeDST))})
	b0 := h.Sum(nil)

	h.Reset()
	h.Write(b0)
	h.Write([]byte{0x01})
	h.Write(encodeDST)
	h.Write([]byte{byte(len(encodeDST))})
	return h.Sum(nil)
}

// encodeToCurve hashes the message, then searches for a valid element
// encoding by incrementing the first byte of the candidate. The basepoint is
// returned if no candidate decodes after 256 attempts.
func encodeToCurve(m []byte) *ristretto255.Element {
	candidate := make([]byte, 32)
	copy(candidate, expandMessage(m))
	candidate[31] &= 0x7f

	for i := 0; i < 256; i++ {
		point := ristretto255.NewElement()
		if err := point.Decode(candidate); err == nil {
			return point
		}
		candidate[0]++
	}

	return ristretto255.NewElement().Base()
}

// generateNonce deterministically derives the proof nonce from the private
// scalar and the encoding of H.
func generateNonce(x *ristretto255.Scalar, hString []byte) *ristretto255.Scalar {
	hashed := sha512.Sum512(x.Encode(nil))

	h := sha512.New()
	h.Write(hashed[32:])
	h.Write(hString)

	return ristretto255.NewScalar().FromUniformBytes(h.Sum(nil))
}

// generateChallenge deterministically generates the proof challenge from the
// given group elements.
func generateChallenge(points ...*ristretto255.Element) []byte {
	buf := &bytes.Buffer{}
	buf.Write(suiteString)
	buf.WriteByte(0x02) // Front domain separator
	for _, p := range points {
		buf.Write(p.Encode(nil))
	}
	buf.WriteByte(0x00) // Back domain separator

	cStr := sha512.Sum512(buf.Bytes())
	return cStr[:challengeSize]
}

// challengeScalar interprets a challenge as a little-endian scalar.
func challengeScalar(c []byte) *ristretto255.Scalar {
	buf := make([]byte, 32)
	copy(buf, c)

	s := ristretto255.NewScalar()
	if err := s.Decode(buf); err != nil {
		panic(err) // A 128-bit value is always canonical.
	}
	return s
}

// proofToHash converts the Gamma component of a proof into the VRF output.
func proofToHash(Gamma *ristretto255.Element) []byte {
	buf := &bytes.Buffer{}
	buf.Write(suiteString)
	buf.WriteByte(0x03) // Front domain separator
	buf.Write(Gamma.Encode(nil))
	buf.WriteByte(0x00) // Back domain separator

	out := sha512.Sum512(buf.Bytes())
	return out[:]
}

// GeneratePrivateKey returns the encoding of a uniformly random scalar.
func GeneratePrivateKey() []byte {
	wide := make([]byte, 64)
	if _, err := rand.Read(wide); err != nil {
		panic(err)
	}
	return ristretto255.NewScalar().FromUniformBytes(wide).Encode(nil)
}

type PrivateKey struct {
	scalar *ristretto255.Scalar
	point  *ristretto255.Element
}

func NewPrivateKey(raw []byte) (*PrivateKey, error) {
	if len(raw) != PrivateKeySize {
		return nil, errors.New("vrf private key is unexpected length")
	}
	scalar := ristretto255.NewScalar()
	if err := scalar.Decode(raw); err != nil {
		return nil, errors.New("vrf private key is not a canonical scalar")
	} else if scalar.Equal(ristretto255.NewScalar()) == 1 {
		return nil, errors.New("vrf private key is zero")
	}
	point := ristretto255.NewElement().ScalarBaseMult(scalar)

	return &PrivateKey{scalar: scalar, point: point}, nil
}

func (p *PrivateKey) Prove(m []byte) (output, proof []byte) {
	H := encodeToCurve(m)

	Gamma := ristretto255.NewElement().ScalarMult(p.scalar, H)

	k := generateNonce(p.scalar, H.Encode(nil))
	kB := ristretto255.NewElement().ScalarBaseMult(k)
	kH := ristretto255.NewElement().ScalarMult(k, H)

	c := generateChallenge(p.point, H, Gamma, kB, kH)

	s := ristretto255.NewScalar().Multiply(challengeScalar(c), p.scalar)
	s.Add(s, k)

	proof = make([]byte, 0, ProofSize)
	proof = append(proof, Gamma.Encode(nil)...)
	proof = append(proof, c...)
	proof = append(proof, s.Encode(nil)...)

	return proofToHash(Gamma), proof
}

func (p *PrivateKey) PublicKey() vrf.PublicKey {
	return &PublicKey{point: p.point, raw: p.point.Encode(nil)}
}

func (p *PrivateKey) Bytes() []byte { return p.scalar.Encode(nil) }

type PublicKey struct {
	point *ristretto255.Element
	raw   []byte
}

func NewPublicKey(raw []byte) (*PublicKey, error) {
	if len(raw) != PublicKeySize {
		return nil, errors.New("vrf public key is unexpected length")
	} else if isZero(raw) {
		return nil, errors.New("vrf public key is the identity")
	}
	point := ristretto255.NewElement()
	if err := point.Decode(raw); err != nil {
		return nil, errors.New("vrf public key is malformed")
	}
	return &PublicKey{point: point, raw: append([]byte{}, raw...)}, nil
}

func (p *PublicKey) Verify(m, proof []byte) (output []byte, err error) {
	// Decode proof.
	if len(proof) != ProofSize {
		return nil, errors.New("vrf proof is invalid size")
	}
	Gamma := ristretto255.NewElement()
	if err := Gamma.Decode(proof[:32]); err != nil {
		return nil, errors.New("vrf proof contains a malformed element")
	}
	c := proof[32 : 32+challengeSize]
	s := ristretto255.NewScalar()
	if err := s.Decode(proof[32+challengeSize:]); err != nil {
		return nil, errors.New("vrf proof contains a non-canonical scalar")
	}

	// Verify proof.
	H := encodeToCurve(m)
	cScalar := challengeScalar(c)

	U := ristretto255.NewElement().ScalarBaseMult(s)
	temp := ristretto255.NewElement().ScalarMult(cScalar, p.point)
	U.Subtract(U, temp)

	V := ristretto255.NewElement().ScalarMult(s, H)
	temp.ScalarMult(cScalar, Gamma)
	V.Subtract(V, temp)

	cPrime := generateChallenge(p.point, H, Gamma, U, V)
	if subtle.ConstantTimeCompare(c, cPrime) != 1 {
		return nil, errors.New("vrf proof verification failed")
	}

	return proofToHash(Gamma), nil
}

// VerifyOutput checks the proof and that it commits to the given output.
func (p *PublicKey) VerifyOutput(m, proof, output []byte) error {
	computed, err := p.Verify(m, proof)
	if err != nil {
		return err
	} else if subtle.ConstantTimeCompare(computed, output) != 1 {
		return errors.New("vrf output does not match proof")
	}
	return nil
}

func (p *PublicKey) Bytes() []byte { return append([]byte{}, p.raw...) }

func isZero(b []byte) bool {
	var acc byte
	for _, x := range b {
		acc |= x
	}
	return acc == 0
}
