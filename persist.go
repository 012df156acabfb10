package mailboxes

import (
	"fmt"
	"io"
	"iter"

	"github.com/infodancer/mailboxes/errors"
)

// KeyFunc provides key material for sealing snapshots.
// A nil result means snapshots are written in the clear.
type KeyFunc func() ([]byte, error)

// noKey is the default KeyFunc.
func noKey() ([]byte, error) { return nil, nil }

// Snapshot is the durable state of a persistent Mailbox.
type Snapshot[S any] struct {
	// Format is the handler's format name.
	Format string `json:"format"`

	// Editable records whether the mailbox accepted writes.
	Editable bool `json:"editable"`

	// State is the handler's serializable state.
	State S `json:"state"`
}

// Source is the view of a persistent mailbox handed to a Serializer.
type Source interface {
	fmt.Stringer

	// Len returns the number of messages in the mailbox.
	Len() int

	// CaptureState returns the mailbox's Snapshot value.
	CaptureState() any

	// EncryptionKey returns key material from the mailbox's KeyFunc.
	EncryptionKey() ([]byte, error)
}

// Serializer writes a mailbox snapshot to path.
type Serializer func(src Source, path string) error

// Persistent is the format-independent interface of a persistent Mailbox.
type Persistent interface {
	Handler
	Source

	Editable() bool
	SetEncryptionKey(fn KeyFunc)
	Save(session Session) error
	SaveTo(session Session, path string, serializer Serializer) error
	BuildPointer(mailboxID, tocID string) (string, error)
	ResolvePointer(ptr string) (io.ReadSeekCloser, error)
	MessageSize(tocID string) (int64, error)
	Messages() ([]MessageInfo, error)
	Add(message io.Reader) (string, error)
	Close() error
}

// Option configures a Mailbox at wrap time.
type Option func(*options)

type options struct {
	editable bool
}

// Editable marks the wrapped mailbox as accepting writes.
func Editable() Option {
	return func(o *options) { o.editable = true }
}

type saveTarget struct {
	serializer Serializer
	path       string
}

// Mailbox adds snapshot persistence and pointer services to a format handler.
// Like the handlers it wraps, a Mailbox is not safe for concurrent use.
type Mailbox[S any, H Snapshotter[S]] struct {
	handler  H
	editable bool

	// Never part of a snapshot.
	saveTo        *saveTarget
	encryptionKey KeyFunc
}

// Wrap returns a persistent Mailbox around h.
func Wrap[S any, H Snapshotter[S]](h H, opts ...Option) *Mailbox[S, H] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Mailbox[S, H]{
		handler:       h,
		editable:      o.editable,
		encryptionKey: noKey,
	}
}

// Handler returns the wrapped handler.
func (m *Mailbox[S, H]) Handler() H {
	return m.handler
}

// Editable reports whether the mailbox accepts writes.
func (m *Mailbox[S, H]) Editable() bool {
	return m.editable
}

func (m *Mailbox[S, H]) String() string {
	if s, ok := any(m.handler).(fmt.Stringer); ok {
		return s.String()
	}
	return m.handler.Type()
}

func (m *Mailbox[S, H]) RefreshTOC() error {
	return m.handler.RefreshTOC()
}

func (m *Mailbox[S, H]) FileByKey(tocID string) (io.ReadSeekCloser, error) {
	return m.handler.FileByKey(tocID)
}

func (m *Mailbox[S, H]) Len() int {
	return m.handler.Len()
}

func (m *Mailbox[S, H]) Keys() iter.Seq[string] {
	return m.handler.Keys()
}

// SetEncryptionKey installs the key provider used when snapshots are written.
// A nil fn restores the default, which provides no key.
func (m *Mailbox[S, H]) SetEncryptionKey(fn KeyFunc) {
	if fn == nil {
		fn = noKey
	}
	m.encryptionKey = fn
}

// EncryptionKey implements Source.
func (m *Mailbox[S, H]) EncryptionKey() ([]byte, error) {
	return m.encryptionKey()
}

// CaptureSnapshot copies the durable state. The save target, key provider
// and handler transient fields are excluded.
func (m *Mailbox[S, H]) CaptureSnapshot() Snapshot[S] {
	return Snapshot[S]{
		Format:   m.handler.Type(),
		Editable: m.editable,
		State:    m.handler.Snapshot(),
	}
}

// CaptureState implements Source.
func (m *Mailbox[S, H]) CaptureState() any {
	return m.CaptureSnapshot()
}

// RestoreFromSnapshot merges snap into the mailbox, resets the save target
// and key provider to their defaults, and refreshes the TOC once.
func (m *Mailbox[S, H]) RestoreFromSnapshot(snap Snapshot[S]) error {
	if snap.Format != "" && snap.Format != m.handler.Type() {
		return fmt.Errorf("%w: snapshot of %s restored into %s",
			errors.ErrSnapshotMismatch, snap.Format, m.handler.Type())
	}
	if err := m.handler.Restore(snap.State); err != nil {
		return err
	}
	m.editable = snap.Editable
	m.saveTo = nil
	m.encryptionKey = noKey
	return m.handler.RefreshTOC()
}

// Save writes a snapshot to the configured save target. It does nothing if
// no target was set or the mailbox holds no messages, so an empty in-memory
// state never replaces a good snapshot on disk.
func (m *Mailbox[S, H]) Save(session Session) error {
	if m.saveTo == nil || m.Len() == 0 {
		return nil
	}
	if session != nil {
		session.Mark(fmt.Sprintf("saving %s state to %s", m, m.saveTo.path))
	}
	return m.saveTo.serializer(m, m.saveTo.path)
}

// SaveTo makes path and serializer the save target for this and later
// Save calls, then saves. If either is missing it behaves like Save.
func (m *Mailbox[S, H]) SaveTo(session Session, path string, serializer Serializer) error {
	if path != "" && serializer != nil {
		m.saveTo = &saveTarget{serializer: serializer, path: path}
	}
	return m.Save(session)
}

// BuildPointer returns the pointer for tocID in the mailbox mailboxID.
func (m *Mailbox[S, H]) BuildPointer(mailboxID, tocID string) (string, error) {
	return EncodePointer(mailboxID, tocID)
}

// ResolvePointer opens the message a pointer refers to. The mailbox ID
// prefix is not checked; the caller picked this mailbox by it.
func (m *Mailbox[S, H]) ResolvePointer(ptr string) (io.ReadSeekCloser, error) {
	tocID, err := DecodePointer(ptr)
	if err != nil {
		return nil, err
	}
	return m.handler.FileByKey(tocID)
}

// MessageSize returns the size in bytes of the message stored under tocID.
func (m *Mailbox[S, H]) MessageSize(tocID string) (int64, error) {
	f, err := m.handler.FileByKey(tocID)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return f.Seek(0, io.SeekEnd)
}

// Messages returns metadata for every message in TOC order.
func (m *Mailbox[S, H]) Messages() ([]MessageInfo, error) {
	flagger, _ := any(m.handler).(Flagger)

	messages := make([]MessageInfo, 0, m.Len())
	for key := range m.handler.Keys() {
		size, err := m.MessageSize(key)
		if err != nil {
			return nil, fmt.Errorf("size of %q: %w", key, err)
		}
		info := MessageInfo{Key: key, Size: size}
		if flagger != nil {
			info.Flags = flagger.Flags(key)
		}
		messages = append(messages, info)
	}
	return messages, nil
}

// Add stores message in an editable mailbox and returns its TOC ID.
func (m *Mailbox[S, H]) Add(message io.Reader) (string, error) {
	if !m.editable {
		return "", errors.ErrReadOnly
	}
	a, ok := any(m.handler).(Appender)
	if !ok {
		return "", fmt.Errorf("%s: %w", m.handler.Type(), errors.ErrNotAppendable)
	}
	return a.Add(message)
}

// Close releases resources held by the handler, if any.
func (m *Mailbox[S, H]) Close() error {
	if c, ok := any(m.handler).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
