package event

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signer authorizes events on behalf of one owner. Implementations fill in
// PubKey, ID and Sig; callers set everything else first.
type Signer interface {
	// PublicKey returns the owner's 32-byte x-only public key as hex.
	PublicKey() string
	// Sign stamps the event with the owner key, derives its id and signs it.
	Sign(ev *Event) error
}

// KeySigner signs with an in-process secret key. This is the only signer
// the server ships; remote signers can implement Signer without touching
// the engine.
type KeySigner struct {
	priv   *btcec.PrivateKey
	pubHex string
}

// NewKeySigner parses a 64-character hex secret key.
func NewKeySigner(secretHex string) (*KeySigner, error) {
	b, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(b) != 32 {
		return nil, errors.New("secret key must be 32 bytes of hex")
	}
	priv, pub := btcec.PrivKeyFromBytes(b)
	return &KeySigner{
		priv:   priv,
		pubHex: hex.EncodeToString(schnorr.SerializePubKey(pub)),
	}, nil
}

func (s *KeySigner) PublicKey() string { return s.pubHex }

func (s *KeySigner) Sign(ev *Event) error {
	ev.PubKey = s.pubHex
	id, err := ev.ComputeID()
	if err != nil {
		return err
	}
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(s.priv, idBytes)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	ev.ID = id
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}
