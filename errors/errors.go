// Package errors provides centralized error definitions for mailboxes.
package errors

import (
	"errors"
	"io/fs"
)

// notFound is a not-found condition that also matches fs.ErrNotExist.
type notFound string

func (e notFound) Error() string { return string(e) }

func (e notFound) Unwrap() error { return fs.ErrNotExist }

// Detection errors.
var (
	// ErrNotAMailbox indicates no registered format accepted a path.
	// Returned errors are *NotAMailboxError values that match it.
	ErrNotAMailbox = errors.New("not a mailbox")

	// ErrAborted is returned by a probe to stop detection immediately.
	// It is treated like context cancellation and never swallowed.
	ErrAborted = errors.New("probe aborted")

	// ErrLocationInvalid indicates a path could not be used or created
	// as a mailbox location.
	ErrLocationInvalid = errors.New("invalid mailbox location")
)

// Mailbox errors.
var (
	// ErrMailboxNotFound indicates a path looks like a mailbox but the
	// backing store cannot be located. It matches fs.ErrNotExist.
	ErrMailboxNotFound error = notFound("mailbox not found")

	// ErrReadOnly indicates a write to a mailbox that was not opened editable.
	ErrReadOnly = errors.New("mailbox is read-only")

	// ErrNotAppendable indicates the format handler cannot add messages.
	ErrNotAppendable = errors.New("mailbox format does not support adding messages")

	// ErrNotPersistable indicates the format handler cannot be snapshotted.
	ErrNotPersistable = errors.New("mailbox format does not support snapshots")
)

// Message errors.
var (
	// ErrMessageNotFound indicates the TOC has no entry for a key, or the
	// entry's storage is gone. It matches fs.ErrNotExist.
	ErrMessageNotFound error = notFound("message not found")

	// ErrMalformedPointer indicates a pointer shorter than the mailbox ID
	// width or with a bad escape sequence.
	ErrMalformedPointer = errors.New("malformed message pointer")

	// ErrInvalidMailboxID indicates a mailbox ID that is not exactly four
	// base-36 characters.
	ErrInvalidMailboxID = errors.New("invalid mailbox id")
)

// Snapshot errors.
var (
	// ErrSnapshotMismatch indicates a snapshot taken from a different format.
	ErrSnapshotMismatch = errors.New("snapshot format mismatch")

	// ErrSnapshotInvalid indicates a snapshot file with a bad header.
	ErrSnapshotInvalid = errors.New("invalid snapshot file")

	// ErrSnapshotEncrypted indicates a sealed snapshot was read without key material.
	ErrSnapshotEncrypted = errors.New("snapshot is encrypted")

	// ErrSnapshotDecryptFailed indicates the key material did not open a sealed snapshot.
	ErrSnapshotDecryptFailed = errors.New("snapshot decryption failed")
)

// NotAMailboxError reports the path that no registered format accepted.
type NotAMailboxError struct {
	Path string
}

func (e *NotAMailboxError) Error() string {
	return "not a mailbox: " + e.Path
}

// Is reports whether target is ErrNotAMailbox.
func (e *NotAMailboxError) Is(target error) bool {
	return target == ErrNotAMailbox
}
