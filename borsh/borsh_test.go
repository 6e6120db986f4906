package borsh

import (
	"bytes"
	"io"
	"testing"

	"github.com/Bren2010/kamui/pubkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegersAreLittleEndian(t *testing.T) {
	buf := &bytes.Buffer{}
	WriteU32(buf, 0x01020304)
	WriteU64(buf, 7)
	WriteBool(buf, true)
	assert.Equal(t, []byte{4, 3, 2, 1, 7, 0, 0, 0, 0, 0, 0, 0, 1}, buf.Bytes())

	u32, err := ReadU32(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), u32)
	u64, err := ReadU64(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u64)
	b, err := ReadBool(buf)
	require.NoError(t, err)
	assert.True(t, b)
	assert.NoError(t, Finish(buf))
}

func TestBytes(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteBytes(buf, []byte("hi"), "greeting"))
	assert.Equal(t, []byte{2, 0, 0, 0, 'h', 'i'}, buf.Bytes())

	out, err := ReadBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), out)
}

func TestTruncated(t *testing.T) {
	_, err := ReadU64(bytes.NewBuffer([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Declared length larger than the remaining input.
	_, err = ReadBytes(bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff, 1}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadPubkey(bytes.NewBuffer(make([]byte, 31)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadBool(bytes.NewBuffer([]byte{2}))
	assert.Error(t, err)
}

func TestPubkey(t *testing.T) {
	pk := pubkey.NewUnique()
	buf := &bytes.Buffer{}
	WritePubkey(buf, pk)
	buf.WriteByte(9)

	out, err := ReadPubkey(buf)
	require.NoError(t, err)
	assert.Equal(t, pk, out)
	assert.ErrorIs(t, Finish(buf), ErrTrailingData)
}
