package coordinator

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/ledger"
)

// CommitmentDomain separates request commitments from other uses of the
// commitment scheme.
const CommitmentDomain = "kamui-vrf-request"

// DeriveRandomness expands a VRF output into `n` words. The first word is the
// output itself; word i is SHA-512(output || u32le(i)).
func DeriveRandomness(output []byte, n uint32) [][structs.RandomnessSize]byte {
	words := make([][structs.RandomnessSize]byte, n)
	for i := range words {
		if i == 0 {
			copy(words[i][:], output)
			continue
		}
		var ctr [4]byte
		binary.LittleEndian.PutUint32(ctr[:], uint32(i))

		h := sha512.New()
		h.Write(output)
		h.Write(ctr[:])
		copy(words[i][:], h.Sum(nil))
	}
	return words
}

// ParseCallback splits callback instruction data into a leading randomness
// word and the remaining arguments.
func ParseCallback(data []byte) (randomness [structs.RandomnessSize]byte, args []byte, err error) {
	if len(data) < structs.RandomnessSize {
		return randomness, nil, ledger.ErrInvalidInstructionData
	}
	copy(randomness[:], data)
	return randomness, data[structs.RandomnessSize:], nil
}
