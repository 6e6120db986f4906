package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	testCases := []struct {
		name string
		fn   func(string) (string, error)
		in   string
		want string
	}{
		{"base64 to hex", Base64ToHex, "SGkgS2FtdWkh", "4869204b616d756921"},
		{"hex to base64", HexToBase64, "4869204b616d756921", "SGkgS2FtdWkh"},
		{"hex with prefix", HexToBase64, "0x01020304", "AQIDBA=="},
		{"empty hex", HexToBase64, "", ""},
		{"hex to base58", HexToBase58, "00010203", "1Ldp"},
		{"base58 to hex", Base58ToHex, "1Ldp", "00010203"},
		{"zero key", HexToBase58, "0000000000000000000000000000000000000000000000000000000000000000", "11111111111111111111111111111111"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	_, err := Base64ToHex("not base64!")
	assert.ErrorIs(t, err, ErrInvalidBase64)

	_, err = HexToBase64("zzzz")
	assert.ErrorIs(t, err, ErrInvalidHex)

	_, err = HexToBase58("abc")
	assert.ErrorIs(t, err, ErrInvalidHex)

	_, err = Base58ToHex("0OIl")
	assert.ErrorIs(t, err, ErrInvalidBase58)
}
