// Package structs implements the encoding and decoding of the accounts,
// instructions and events of the VRF coordinator.
package structs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Bren2010/kamui/borsh"
)

const (
	MinimumRequestConfirmations = 1
	MaximumRequestConfirmations = 255
	MinimumCallbackGasLimit     = 10_000
	MaximumCallbackGasLimit     = 1_000_000
	MaximumRandomWords          = 100

	// RequestLifetime is the number of slots after which a pending request
	// can no longer be fulfilled.
	RequestLifetime = 10_000

	DiscriminatorSize = 8
	SeedSize          = 32
	RandomnessSize    = 64
)

// Account discriminators, written as the first eight bytes of account data.
var (
	SubscriptionDiscriminator = [DiscriminatorSize]byte{'S', 'U', 'B', 'S', 'C', 'R', 'I', 'P'}
	RequestDiscriminator      = [DiscriminatorSize]byte{'R', 'E', 'Q', 'U', 'E', 'S', 'T', 0}
	VrfResultDiscriminator    = [DiscriminatorSize]byte{'V', 'R', 'F', 'R', 'S', 'L', 'T', 0}
	OracleDiscriminator       = [DiscriminatorSize]byte{'O', 'R', 'A', 'C', 'L', 'E', 0, 0}
)

var ErrDiscriminator = errors.New("account discriminator does not match")

func readDiscriminator(buf *bytes.Buffer, want [DiscriminatorSize]byte) error {
	if buf.Len() < DiscriminatorSize {
		return io.ErrUnexpectedEOF
	} else if !bytes.Equal(buf.Next(DiscriminatorSize), want[:]) {
		return ErrDiscriminator
	}
	return nil
}

func readArray32(buf *bytes.Buffer) (out [32]byte, err error) {
	if buf.Len() < 32 {
		return out, io.ErrUnexpectedEOF
	}
	copy(out[:], buf.Next(32))
	return out, nil
}

// Size returns the encoded length of `x`.
func Size(x borsh.Marshaller) (int, error) {
	raw, err := borsh.Marshal(x)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Store marshals `x` into the account data `dst`, which must already have
// exactly the right length.
func Store(dst []byte, x borsh.Marshaller) error {
	raw, err := borsh.Marshal(x)
	if err != nil {
		return err
	} else if len(raw) != len(dst) {
		return fmt.Errorf("encoded account is %d bytes, account holds %d", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
