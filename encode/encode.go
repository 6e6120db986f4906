// Package encode converts byte strings between the textual encodings used by
// keys, proofs and addresses.
package encode

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	ErrInvalidHex    = errors.New("invalid hex string")
	ErrInvalidBase64 = errors.New("invalid base64 string")
	ErrInvalidBase58 = errors.New("invalid base58 string")
)

// DecodeHex accepts hex with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidHex
	}
	return out, nil
}

// DecodeBase64 accepts standard base64 with padding.
func DecodeBase64(s string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrInvalidBase64
	}
	return out, nil
}

func DecodeBase58(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}
	out, err := base58.Decode(s)
	if err != nil {
		return nil, ErrInvalidBase58
	}
	return out, nil
}

func Base64ToHex(s string) (string, error) {
	raw, err := DecodeBase64(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func HexToBase64(s string) (string, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func Base58ToHex(s string) (string, error) {
	raw, err := DecodeBase58(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func HexToBase58(s string) (string, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}
