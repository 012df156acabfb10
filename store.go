package mailboxes

import (
	"io"
	"iter"
)

// Handler provides read access to one mailbox in a specific on-disk format.
// Handlers are not safe for concurrent use.
type Handler interface {
	// RefreshTOC rebuilds the table of contents from the backing store.
	// Calling it repeatedly without changes to the store yields the same TOC.
	RefreshTOC() error

	// FileByKey opens the storage of the message with the given TOC ID.
	// The caller is responsible for closing the returned stream.
	FileByKey(tocID string) (io.ReadSeekCloser, error)

	// Len returns the number of messages in the TOC.
	Len() int

	// Keys yields the TOC IDs in a stable, format-defined order.
	Keys() iter.Seq[string]
}

// Snapshotter is a Handler whose durable state can be captured as a plain
// data value of type S and merged back later. S never carries open files,
// locks, or parse caches; Restore leaves those at their zero values and the
// next RefreshTOC re-derives whatever is needed.
type Snapshotter[S any] interface {
	Handler

	// Type returns the format name, matching Format.Name.
	Type() string

	// Snapshot copies the serializable state.
	Snapshot() S

	// Restore replaces the serializable state and clears transient fields.
	// It must not refresh the TOC itself.
	Restore(state S) error
}

// Appender is implemented by handlers that can add messages.
type Appender interface {
	// Add stores message and returns its TOC ID.
	Add(message io.Reader) (string, error)
}

// Flagger is implemented by handlers that track message flags.
type Flagger interface {
	// Flags returns IMAP-style flags (e.g., "\Seen") for a TOC ID.
	Flags(tocID string) []string
}

// MessageInfo contains metadata about a stored message.
type MessageInfo struct {
	// Key is the TOC ID of the message within its mailbox.
	Key string

	// Size is the message size in bytes.
	Size int64

	// Flags contains message flags (e.g., "\Seen", "\Deleted", "\Answered").
	Flags []string
}
