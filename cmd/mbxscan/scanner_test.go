package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/infodancer/mailboxes"
	"github.com/infodancer/mailboxes/maildir"
	"github.com/infodancer/mailboxes/mbox"
	"github.com/infodancer/mailboxes/snapshot"
)

func newTestScanner() *scanner {
	reg := mailboxes.NewRegistry()
	maildir.Register(reg)
	mbox.Register(reg)

	log := zap.NewNop()
	return &scanner{
		registry: reg,
		writer:   snapshot.Writer(snapshot.JSON()),
		session:  zapSession{log: log},
		log:      log,
	}
}

func TestScan_SavesSnapshot(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	content := "From a@b Mon Jan  1 00:00:00 2024\nSubject: hi\n\nbody\n"
	if err := os.WriteFile(inbox, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "inbox.snap")

	s := newTestScanner()
	if err := s.scan(context.Background(), 0, MailboxConfig{Path: inbox, Snapshot: target}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	snap, err := snapshot.Read[mbox.State](target, snapshot.JSON(), nil)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snap.Format != mbox.Type || len(snap.State.Messages) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestScan_InvalidID(t *testing.T) {
	s := newTestScanner()
	err := s.scan(context.Background(), 0, MailboxConfig{ID: "toolong", Path: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "invalid id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"Codec": "json", "Options": {"maildir_subdir": "Maildir"},
		"Mailboxes": [{"ID": "0001", "Path": "/var/mail/alice", "Create": true}]}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if config.Codec != "json" || config.Options["maildir_subdir"] != "Maildir" {
		t.Errorf("config = %+v", config)
	}
	if len(config.Mailboxes) != 1 || !config.Mailboxes[0].Create || config.Mailboxes[0].ID != "0001" {
		t.Errorf("mailboxes = %+v", config.Mailboxes)
	}
}

func TestLoadConfig_UnknownCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"Codec": "xml"}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadConfig(path); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected unknown codec error, got %v", err)
	}
}
