package mailboxes

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/infodancer/mailboxes/errors"
)

// serializerCall records one Serializer invocation.
type serializerCall struct {
	src  Source
	path string
}

func recordingSerializer(calls *[]serializerCall) Serializer {
	return func(src Source, path string) error {
		*calls = append(*calls, serializerCall{src: src, path: path})
		return nil
	}
}

func threeMessages() map[string]string {
	return map[string]string{"1": "one", "2": "two", "3": "three"}
}

func TestSave_StickyTarget(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", threeMessages()))

	var calls []serializerCall
	if err := m.SaveTo(nil, "/tmp/x", recordingSerializer(&calls)); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	calls = nil

	if err := m.Save(nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("serializer called %d times, want 1", len(calls))
	}
	if calls[0].path != "/tmp/x" {
		t.Errorf("serializer path = %q, want %q", calls[0].path, "/tmp/x")
	}
	if calls[0].src != Source(m) {
		t.Error("serializer did not receive the mailbox")
	}
}

func TestSave_EmptyMailbox(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", nil))

	var calls []serializerCall
	if err := m.SaveTo(nil, "/tmp/x", recordingSerializer(&calls)); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	if err := m.Save(nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("serializer called %d times for an empty mailbox, want 0", len(calls))
	}
}

func TestSave_NoTarget(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", threeMessages()))
	session := &recordingSession{}

	if err := m.Save(session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var calls []serializerCall
	// A path without a serializer, or the reverse, does not set a target.
	if err := m.SaveTo(session, "/tmp/x", nil); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	if err := m.SaveTo(session, "", recordingSerializer(&calls)); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("serializer called %d times without a target", len(calls))
	}
	if len(session.marks) != 0 {
		t.Errorf("session marked %v without a save", session.marks)
	}
}

func TestSave_SessionAndErrors(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", threeMessages()))
	session := &recordingSession{}

	boom := fmt.Errorf("disk full")
	err := m.SaveTo(session, "/tmp/x", func(Source, string) error { return boom })
	if err != boom {
		t.Fatalf("expected serializer error unmodified, got %v", err)
	}
	if len(session.marks) != 1 || !strings.Contains(session.marks[0], "/tmp/x") {
		t.Errorf("session marks = %v, want one mentioning the target", session.marks)
	}
}

func TestCaptureSnapshot(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", threeMessages()), Editable())
	m.SetEncryptionKey(func() ([]byte, error) { return []byte("secret"), nil })

	snap := m.CaptureSnapshot()
	if snap.Format != "mock" {
		t.Errorf("Format = %q, want %q", snap.Format, "mock")
	}
	if !snap.Editable {
		t.Error("snapshot lost the editable flag")
	}
	if snap.State.Name != "inbox" || len(snap.State.Messages) != 3 {
		t.Errorf("State = %+v", snap.State)
	}
	if _, ok := m.CaptureState().(Snapshot[mockState]); !ok {
		t.Errorf("CaptureState returned %T", m.CaptureState())
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	src := Wrap[mockState](newMockHandler("inbox", threeMessages()), Editable())
	snap := src.CaptureSnapshot()

	h := newMockHandler("", nil)
	m := Wrap[mockState](h)
	var calls []serializerCall
	if err := m.SaveTo(nil, "/tmp/old", recordingSerializer(&calls)); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	m.SetEncryptionKey(func() ([]byte, error) { return []byte("secret"), nil })

	if err := m.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("RestoreFromSnapshot failed: %v", err)
	}

	if h.refreshes != 1 {
		t.Errorf("RefreshTOC called %d times, want 1", h.refreshes)
	}
	if h.cache != nil {
		t.Error("transient cache survived restore")
	}
	if m.saveTo != nil {
		t.Error("save target survived restore")
	}
	key, err := m.EncryptionKey()
	if err != nil || key != nil {
		t.Errorf("EncryptionKey() = %q, %v; want no key", key, err)
	}
	if !m.Editable() {
		t.Error("editable flag not restored")
	}
	if m.Len() != 3 || h.name != "inbox" {
		t.Errorf("restored %d messages named %q", m.Len(), h.name)
	}

	// No target after restore, so nothing is written.
	if err := m.Save(nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("serializer called %d times after restore", len(calls))
	}
}

func TestRestoreFromSnapshot_Mismatch(t *testing.T) {
	h := newMockHandler("", nil)
	m := Wrap[mockState](h)

	err := m.RestoreFromSnapshot(Snapshot[mockState]{Format: "maildir"})
	if !stderrors.Is(err, errors.ErrSnapshotMismatch) {
		t.Fatalf("expected ErrSnapshotMismatch, got %v", err)
	}
	if h.restores != 0 || h.refreshes != 0 {
		t.Error("mismatched snapshot was applied")
	}
}

func TestPointers(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", map[string]string{"inbox/5": "hello"}))

	ptr, err := m.BuildPointer("AB12", "inbox/5")
	if err != nil {
		t.Fatalf("BuildPointer failed: %v", err)
	}
	if ptr != "AB12inbox%2F5" {
		t.Errorf("BuildPointer = %q, want %q", ptr, "AB12inbox%2F5")
	}

	f, err := m.ResolvePointer(ptr)
	if err != nil {
		t.Fatalf("ResolvePointer failed: %v", err)
	}
	data, _ := io.ReadAll(f)
	_ = f.Close()
	if string(data) != "hello" {
		t.Errorf("resolved content = %q, want %q", data, "hello")
	}

	if _, err := m.ResolvePointer("AB"); !stderrors.Is(err, errors.ErrMalformedPointer) {
		t.Errorf("expected ErrMalformedPointer, got %v", err)
	}
	if _, err := m.ResolvePointer("AB12missing"); !stderrors.Is(err, errors.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMessageSize(t *testing.T) {
	h := newMockHandler("inbox", threeMessages())
	m := Wrap[mockState](h)

	for key, body := range h.messages {
		size, err := m.MessageSize(key)
		if err != nil {
			t.Fatalf("MessageSize(%q) failed: %v", key, err)
		}
		if size != int64(len(body)) {
			t.Errorf("MessageSize(%q) = %d, want %d", key, size, len(body))
		}
	}

	msgs, err := m.Messages()
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Key != "1" || msgs[2].Size != int64(len("three")) {
		t.Errorf("Messages() = %+v", msgs)
	}
}

func TestAdd_RequiresEditable(t *testing.T) {
	ro := Wrap[mockState](newMockHandler("inbox", nil))
	if _, err := ro.Add(strings.NewReader("x")); !stderrors.Is(err, errors.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}

	rw := Wrap[mockState](newMockHandler("inbox", nil), Editable())
	key, err := rw.Add(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if size, _ := rw.MessageSize(key); size != 1 {
		t.Errorf("MessageSize(%q) = %d, want 1", key, size)
	}
}

func TestString(t *testing.T) {
	m := Wrap[mockState](newMockHandler("inbox", nil))
	if m.String() != "mock" {
		t.Errorf("String() = %q, want %q", m.String(), "mock")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
