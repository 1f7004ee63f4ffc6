// Package event implements the signed relay event envelope: canonical id
// derivation, BIP-340 schnorr signatures, and the query filter shape.
package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event kinds used by this application.
const (
	// KindProfileMetadata carries an owner's identity metadata (kind 0).
	KindProfileMetadata = 0
	// KindLinkPage carries one full link-page document per (owner, storage
	// key) slot. Parameterized-replaceable application-data kind.
	KindLinkPage = 30078
)

// TagStorageKey is the tag name addressing a replaceable event slot.
const TagStorageKey = "d"

// Event is the wire envelope for everything stored on relays. Content is
// opaque here; for KindLinkPage it is a serialized document.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// NewLinkPage builds an unsigned link-page event for a storage key.
func NewLinkPage(storageKey, content string, createdAt int64) Event {
	return Event{
		CreatedAt: createdAt,
		Kind:      KindLinkPage,
		Tags:      [][]string{{TagStorageKey, storageKey}},
		Content:   content,
	}
}

// Tag returns the first value for a tag name, or "" when absent.
func (ev *Event) Tag(name string) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// StorageKey returns the replaceable-slot key the event is addressed by.
func (ev *Event) StorageKey() string {
	return ev.Tag(TagStorageKey)
}

// canonical returns the payload the id is derived from:
// [0, pubkey, created_at, kind, tags, content] serialized without HTML
// escaping. The exact bytes matter; every client must agree on them.
func (ev *Event) canonical() ([]byte, error) {
	tags := ev.Tags
	if tags == nil {
		tags = [][]string{}
	}
	arr := []any{0, ev.PubKey, ev.CreatedAt, ev.Kind, tags, ev.Content}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}

// ComputeID derives the event id: lowercase hex sha256 of the canonical
// serialization.
func (ev *Event) ComputeID() (string, error) {
	b, err := ev.canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateID checks that the id matches the canonical serialization.
func (ev *Event) ValidateID() error {
	id, err := ev.ComputeID()
	if err != nil {
		return err
	}
	if id != ev.ID {
		return errors.New("event id does not match content")
	}
	return nil
}

// CheckSignature checks that the signature is valid for the event's author
// over the event id. It does not bind the id to the content; use Verify
// for the full check.
func (ev *Event) CheckSignature() error {
	pkBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(pkBytes) != 32 {
		return errors.New("event pubkey is not a 32-byte hex key")
	}
	pk, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return fmt.Errorf("parse event pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil || len(sigBytes) != 64 {
		return errors.New("event signature is not a 64-byte hex signature")
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("parse event signature: %w", err)
	}

	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil {
		return errors.New("event id is not hex")
	}
	if !sig.Verify(idBytes, pk) {
		return errors.New("invalid event signature")
	}
	return nil
}

// Verify checks that the id matches the canonical serialization and that
// the signature is valid for the event's author.
func (ev *Event) Verify() error {
	if err := ev.ValidateID(); err != nil {
		return err
	}
	return ev.CheckSignature()
}
