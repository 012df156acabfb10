package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/infodancer/mailboxes/snapshot"
)

type MailboxConfig struct {
	// ID is the 4-character base-36 mailbox ID used in message pointers.
	// Assigned from the mailbox's position when empty.
	ID string

	Path string

	// Create makes a missing mailbox in the first format that can.
	Create bool

	Editable bool

	// Snapshot is where the mailbox state is saved. Not saved when empty.
	Snapshot string
}

type Config struct {
	// Codec names the snapshot encoding: "cbor" (default) or "json".
	Codec string

	// Passphrase seals snapshots when set.
	Passphrase string

	// Options are passed to every format probe (e.g., "maildir_subdir").
	Options map[string]string

	Mailboxes []MailboxConfig

	Debug bool
}

func loadConfig(path string) (Config, error) {
	var config Config

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&config); err != nil {
		return config, fmt.Errorf("decode %s: %w", path, err)
	}
	if _, err := snapshot.ByName(config.Codec); err != nil {
		return config, err
	}
	return config, nil
}
