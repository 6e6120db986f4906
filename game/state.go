package game

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

// Error is a game-specific failure; its value is the custom error code.
type Error uint32

const (
	ErrAlreadyPending Error = iota
	ErrInvalidOwner
	ErrInvalidVrfCoordinator
	ErrInvalidVrfResult
	ErrInvalidVrfRequest
	ErrNotPending
)

var errorMessages = [...]string{
	ErrAlreadyPending:        "game is already pending randomness",
	ErrInvalidOwner:          "invalid game owner",
	ErrInvalidVrfCoordinator: "invalid VRF coordinator program",
	ErrInvalidVrfResult:      "invalid VRF result account",
	ErrInvalidVrfRequest:     "invalid VRF request account",
	ErrNotPending:            "game is not waiting for randomness",
}

func (e Error) Error() string {
	if int(e) < len(errorMessages) {
		return fmt.Sprintf("game: %s (code %d)", errorMessages[e], uint32(e))
	}
	return fmt.Sprintf("game: unknown error (code %d)", uint32(e))
}

var stateDiscriminator = []byte("GAMESTAT")

// StateSize is the length of a game state account's data.
const StateSize = 8 + 32 + 32 + 1 + 1 + 32

type State struct {
	Owner         pubkey.Pubkey
	Subscription  pubkey.Pubkey
	CurrentNumber uint8 // 1 through 100, or 0 before the first draw.
	IsPending     bool
	// PendingRequest is the coordinator request the game is waiting on.
	PendingRequest pubkey.Pubkey
}

func NewState(data []byte) (*State, error) {
	buf := bytes.NewBuffer(data)
	if buf.Len() < len(stateDiscriminator) {
		return nil, io.ErrUnexpectedEOF
	} else if !bytes.Equal(buf.Next(len(stateDiscriminator)), stateDiscriminator) {
		return nil, errors.New("game state discriminator does not match")
	}
	s := &State{}
	var err error
	if s.Owner, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if s.Subscription, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if s.CurrentNumber, err = borsh.ReadU8(buf); err != nil {
		return nil, err
	} else if s.IsPending, err = borsh.ReadBool(buf); err != nil {
		return nil, err
	} else if s.PendingRequest, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) Marshal(buf *bytes.Buffer) error {
	buf.Write(stateDiscriminator)
	borsh.WritePubkey(buf, s.Owner)
	borsh.WritePubkey(buf, s.Subscription)
	buf.WriteByte(s.CurrentNumber)
	borsh.WriteBool(buf, s.IsPending)
	borsh.WritePubkey(buf, s.PendingRequest)
	return nil
}

func (s *State) store(dst []byte) error {
	raw, err := borsh.Marshal(s)
	if err != nil {
		return err
	} else if len(raw) != len(dst) {
		return ledger.ErrInvalidAccountData
	}
	copy(dst, raw)
	return nil
}

// StateAddress returns the address of the game state of `owner`.
func StateAddress(programID, owner pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	return pubkey.FindProgramAddress(stateSeeds(owner), programID)
}

func stateSeeds(owner pubkey.Pubkey) [][]byte {
	return [][]byte{[]byte("game_state"), owner.Bytes()}
}
