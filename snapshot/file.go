package snapshot

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/infodancer/mailboxes"
	"github.com/infodancer/mailboxes/errors"
)

const (
	magic = "MBXS"

	flagSealed byte = 1 << 0

	// Sealed payload format: salt (32B) || nonce (24B) || ciphertext
	saltSize  = 32
	nonceSize = 24

	// Argon2id parameters for key derivation
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// Writer returns a Serializer that encodes snapshots with codec. The file
// is sealed when the mailbox's key provider returns key material.
func Writer(codec Codec) mailboxes.Serializer {
	return func(src mailboxes.Source, path string) error {
		payload, err := codec.Marshal(src.CaptureState())
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		key, err := src.EncryptionKey()
		if err != nil {
			return fmt.Errorf("snapshot key: %w", err)
		}
		return writeFile(path, payload, key)
	}
}

// Read decodes the snapshot stored at path. key must be the key material
// the snapshot was sealed with, or nil for an unsealed snapshot.
func Read[S any](path string, codec Codec, key []byte) (mailboxes.Snapshot[S], error) {
	var snap mailboxes.Snapshot[S]

	payload, err := readFile(path, key)
	if err != nil {
		return snap, err
	}
	if err := codec.Unmarshal(payload, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Load restores h from the snapshot at path and wraps it. The TOC is
// refreshed from the backing store as part of the restore.
func Load[S any, H mailboxes.Snapshotter[S]](path string, codec Codec, key []byte, h H, opts ...mailboxes.Option) (*mailboxes.Mailbox[S, H], error) {
	snap, err := Read[S](path, codec, key)
	if err != nil {
		return nil, err
	}
	m := mailboxes.Wrap[S](h, opts...)
	if err := m.RestoreFromSnapshot(snap); err != nil {
		return nil, err
	}
	return m, nil
}

// writeFile writes the snapshot to a temporary file beside path, then
// renames it into place so readers never see a partial snapshot.
func writeFile(path string, payload, key []byte) error {
	var flags byte
	if len(key) > 0 {
		sealed, err := seal(payload, key)
		if err != nil {
			return err
		}
		payload = sealed
		flags |= flagSealed
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(append([]byte(magic), flags))
	if err == nil {
		_, err = tmp.Write(payload)
	}
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// readFile returns the plaintext payload of the snapshot at path.
func readFile(path string, key []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic)+1 || !bytes.Equal(data[:len(magic)], []byte(magic)) {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotInvalid, path)
	}
	flags := data[len(magic)]
	payload := data[len(magic)+1:]

	if flags&flagSealed == 0 {
		return payload, nil
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotEncrypted, path)
	}
	return open(payload, key)
}

// seal encrypts payload with NaCl secretbox under a key derived from key material.
func seal(payload, material []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := deriveKey(material, salt)

	out := make([]byte, 0, saltSize+nonceSize+len(payload)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, payload, &nonce, &key), nil
}

// open reverses seal.
func open(sealed, material []byte) ([]byte, error) {
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return nil, errors.ErrSnapshotInvalid
	}

	salt := sealed[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])
	ciphertext := sealed[saltSize+nonceSize:]

	key := deriveKey(material, salt)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, errors.ErrSnapshotDecryptFailed
	}
	return plaintext, nil
}

func deriveKey(material, salt []byte) [argon2KeyLen]byte {
	var key [argon2KeyLen]byte
	copy(key[:], argon2.IDKey(material, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen))
	return key
}
