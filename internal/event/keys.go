package event

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// npubHRP is the bech32 human-readable prefix for public keys.
const npubHRP = "npub"

// IsHexKey reports whether s is a lowercase 64-character hex public key.
func IsHexKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// EncodeNpub renders a hex public key in its bech32 display form.
func EncodeNpub(pubHex string) (string, error) {
	b, err := hex.DecodeString(pubHex)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != 32 {
		return "", errors.New("public key must be 32 bytes")
	}
	grouped, err := bech32.ConvertBits(b, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert public key bits: %w", err)
	}
	return bech32.Encode(npubHRP, grouped)
}

// DecodeNpub parses a bech32 npub string back to a hex public key.
func DecodeNpub(npub string) (string, error) {
	hrp, data, err := bech32.Decode(npub)
	if err != nil {
		return "", fmt.Errorf("decode npub: %w", err)
	}
	if hrp != npubHRP {
		return "", fmt.Errorf("unexpected prefix %q, want %q", hrp, npubHRP)
	}
	b, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("convert npub bits: %w", err)
	}
	if len(b) != 32 {
		return "", errors.New("npub does not encode a 32-byte key")
	}
	return hex.EncodeToString(b), nil
}

// IsNpub reports whether s looks like an npub identifier. It checks shape
// only; DecodeNpub still validates the checksum.
func IsNpub(s string) bool {
	return strings.HasPrefix(s, npubHRP+"1") && len(s) == 63
}
