// Package borsh implements the subset of the Borsh binary format used by the
// ledger and its programs: little-endian integers, u32 length-prefixed byte
// strings and vectors, u8 option and enum tags.
package borsh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/Bren2010/kamui/pubkey"
)

var (
	ErrTrailingData = errors.New("borsh: unexpected trailing data")
	ErrTooLong      = errors.New("borsh: value is too long to marshal")
)

func ReadU8(buf *bytes.Buffer) (uint8, error) {
	b, err := buf.ReadByte()
	if err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	return b, err
}

func ReadBool(buf *bytes.Buffer) (bool, error) {
	b, err := ReadU8(buf)
	if err != nil {
		return false, err
	} else if b > 1 {
		return false, errors.New("borsh: read unexpected value in bool")
	}
	return b == 1, nil
}

func WriteBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func ReadU32(buf *bytes.Buffer) (uint32, error) {
	var v uint32
	if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
		return 0, unexpected(err)
	}
	return v, nil
}

func WriteU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func ReadU64(buf *bytes.Buffer) (uint64, error) {
	var v uint64
	if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
		return 0, unexpected(err)
	}
	return v, nil
}

func WriteU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

// ReadFixed reads exactly n bytes.
func ReadFixed(buf *bytes.Buffer, n int) ([]byte, error) {
	if buf.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, buf.Next(n))
	return out, nil
}

// ReadBytes reads a u32 length-prefixed byte string.
func ReadBytes(buf *bytes.Buffer) ([]byte, error) {
	size, err := ReadLen(buf, 1)
	if err != nil {
		return nil, err
	}
	return ReadFixed(buf, size)
}

func WriteBytes(buf *bytes.Buffer, b []byte, name string) error {
	if len(b) > math.MaxUint32 {
		return errors.New(name + " is too long to marshal")
	}
	WriteU32(buf, uint32(len(b)))
	buf.Write(b)
	return nil
}

func ReadString(buf *bytes.Buffer) (string, error) {
	b, err := ReadBytes(buf)
	return string(b), err
}

// ReadLen reads a u32 vector length and checks that the remaining buffer
// could hold that many elements of at least minSize bytes each.
func ReadLen(buf *bytes.Buffer, minSize int) (int, error) {
	size, err := ReadU32(buf)
	if err != nil {
		return 0, err
	} else if minSize > 0 && uint64(size)*uint64(minSize) > uint64(buf.Len()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(size), nil
}

func ReadPubkey(buf *bytes.Buffer) (pubkey.Pubkey, error) {
	var pk pubkey.Pubkey
	if buf.Len() < pubkey.Size {
		return pk, io.ErrUnexpectedEOF
	}
	copy(pk[:], buf.Next(pubkey.Size))
	return pk, nil
}

func WritePubkey(buf *bytes.Buffer, pk pubkey.Pubkey) { buf.Write(pk[:]) }

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

type Marshaller interface {
	Marshal(buf *bytes.Buffer) error
}

// Marshal takes a structure as input and returns the marshalled struct as a
// byte slice.
func Marshal(x Marshaller) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := x.Marshal(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Finish returns an error if any bytes remain unread.
func Finish(buf *bytes.Buffer) error {
	if buf.Len() != 0 {
		return ErrTrailingData
	}
	return nil
}
