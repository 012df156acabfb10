// Package snapshot writes and reads persistent mailbox snapshots.
//
// A snapshot file starts with the magic "MBXS" and a flags byte, followed
// by the encoded mailboxes.Snapshot. When the mailbox's key provider yields
// key material the payload is sealed:
//
//	salt (32B) || nonce (24B) || secretbox(payload)
//
// with the secretbox key derived from the key material by Argon2id.
package snapshot

import (
	"encoding/json"
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
)

// Codec marshals snapshot values.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec using the core encoding profile.
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) Name() string { return "cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

type jsonCodec struct{}

// JSON returns a codec producing human-readable snapshots.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ByName returns the codec called name ("cbor" or "json").
func ByName(name string) (Codec, error) {
	switch name {
	case "cbor", "":
		return CBOR()
	case "json":
		return JSON(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", name)
	}
}
