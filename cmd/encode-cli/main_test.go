package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConversions(t *testing.T) {
	testCases := []struct {
		args []string
		want string
	}{
		{[]string{"base64-to-hex", "--value", "SGVsbG8="}, "48656c6c6f\n"},
		{[]string{"hex-to-base64", "--value", "48656c6c6f"}, "SGVsbG8=\n"},
		{[]string{"hex-to-base58", "--value", "0000010203"}, "11Ldp\n"},
		{[]string{"base58-to-hex", "--value", "11Ldp"}, "0000010203\n"},
		{[]string{"base58-to-hex", "--value", "11111111111111111111111111111111"}, "0000000000000000000000000000000000000000000000000000000000000000\n"},
	}
	for _, tc := range testCases {
		out, err := run(tc.args...)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, out, tc.args)
	}
}

func TestInvalidValues(t *testing.T) {
	for _, args := range [][]string{
		{"base64-to-hex", "--value", "not base64!"},
		{"hex-to-base64", "--value", "xyz"},
		{"base58-to-hex", "--value", "0OIl"},
		{"hex-to-base58", "--value", "abc"},
		{"hex-to-base58"},
	} {
		_, err := run(args...)
		assert.Error(t, err, args)
	}
}
