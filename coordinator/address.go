package coordinator

import (
	"encoding/binary"

	"github.com/Bren2010/kamui/pubkey"
)

var (
	requestSeed   = []byte("request")
	vrfResultSeed = []byte("vrf_result")
	oracleSeed    = []byte("oracle")
)

func requestSeeds(subscription pubkey.Pubkey, nonce uint64) [][]byte {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)
	return [][]byte{requestSeed, subscription.Bytes(), le[:]}
}

func vrfResultSeeds(request pubkey.Pubkey) [][]byte {
	return [][]byte{vrfResultSeed, request.Bytes()}
}

func oracleSeeds(oracle pubkey.Pubkey) [][]byte {
	return [][]byte{oracleSeed, oracle.Bytes()}
}

// withBump returns a copy of seeds with the bump seed appended.
func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}

// RequestAddress returns the address of the request made with the given
// subscription nonce.
func RequestAddress(programID, subscription pubkey.Pubkey, nonce uint64) (pubkey.Pubkey, uint8, error) {
	return pubkey.FindProgramAddress(requestSeeds(subscription, nonce), programID)
}

// VrfResultAddress returns the address holding the result of a request.
func VrfResultAddress(programID, request pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	return pubkey.FindProgramAddress(vrfResultSeeds(request), programID)
}

// OracleConfigAddress returns the address of an oracle's configuration.
func OracleConfigAddress(programID, oracle pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	return pubkey.FindProgramAddress(oracleSeeds(oracle), programID)
}
