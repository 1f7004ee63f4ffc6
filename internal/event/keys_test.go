package event

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

func TestNpubRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	pubHex := signer.PublicKey()

	npub, err := EncodeNpub(pubHex)
	if err != nil {
		t.Fatalf("EncodeNpub() error = %v", err)
	}
	if !strings.HasPrefix(npub, "npub1") {
		t.Errorf("EncodeNpub() = %q, want npub1 prefix", npub)
	}
	if len(npub) != 63 {
		t.Errorf("EncodeNpub() length = %d, want 63", len(npub))
	}

	got, err := DecodeNpub(npub)
	if err != nil {
		t.Fatalf("DecodeNpub() error = %v", err)
	}
	if got != pubHex {
		t.Errorf("DecodeNpub(EncodeNpub()) = %v, want %v", got, pubHex)
	}
}

func TestEncodeNpubRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("z", 64)},
		{"short", strings.Repeat("a", 62)},
		{"long", strings.Repeat("a", 66)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeNpub(tt.key); err == nil {
				t.Errorf("EncodeNpub(%q) error = nil, want error", tt.key)
			}
		})
	}
}

func TestDecodeNpubRejectsBadInput(t *testing.T) {
	signer := newTestSigner(t)
	npub, err := EncodeNpub(signer.PublicKey())
	if err != nil {
		t.Fatalf("EncodeNpub() error = %v", err)
	}

	// Same payload under a different prefix must not decode as an npub.
	hexBytes := make([]byte, 32)
	grouped, err := bech32.ConvertBits(hexBytes, 8, 5, true)
	if err != nil {
		t.Fatalf("ConvertBits() error = %v", err)
	}
	nsec, err := bech32.Encode("nsec", grouped)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	corrupted := npub[:62] + "q"
	if corrupted == npub {
		corrupted = npub[:62] + "p"
	}

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not bech32", "npub1!!!!"},
		{"wrong prefix", nsec},
		{"corrupted checksum", corrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeNpub(tt.in); err == nil {
				t.Errorf("DecodeNpub(%q) error = nil, want error", tt.in)
			}
		})
	}
}

func TestIsHexKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "17162c921dc4d2518f9a101db33695df1afb56ab82f5ff3e5da6eec3ca5cd917", true},
		{"uppercase", "17162C921DC4D2518F9A101DB33695DF1AFB56AB82F5FF3E5DA6EEC3CA5CD917", false},
		{"too short", strings.Repeat("a", 63), false},
		{"too long", strings.Repeat("a", 65), false},
		{"non hex rune", strings.Repeat("a", 63) + "g", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHexKey(tt.in); got != tt.want {
				t.Errorf("IsHexKey(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsNpub(t *testing.T) {
	signer := newTestSigner(t)
	npub, err := EncodeNpub(signer.PublicKey())
	if err != nil {
		t.Fatalf("EncodeNpub() error = %v", err)
	}

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"real npub", npub, true},
		{"wrong prefix", "nsec1" + strings.Repeat("q", 58), false},
		{"too short", "npub1abc", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNpub(tt.in); got != tt.want {
				t.Errorf("IsNpub(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
