// Package mailboxes detects and opens mailboxes stored in heterogeneous
// on-disk formats, addresses their messages with compact pointers, and
// snapshots format handlers to durable storage.
//
// Format packages such as maildir and mbox register themselves with a
// Registry at startup:
//
//	reg := mailboxes.NewRegistry()
//	maildir.Register(reg)
//	mbox.Register(reg)
//
//	h, err := reg.OpenMailbox(ctx, "/var/mail/alice", mailboxes.Config{}, false)
package mailboxes

import "context"

// Config contains settings passed to every format probe.
type Config struct {
	// Options contains format-specific settings (e.g., "maildir_subdir").
	Options map[string]string
}

// Option returns the named option or "" when unset.
func (c Config) Option(name string) string {
	return c.Options[name]
}

// Location holds the constructor arguments a Format derives from a path.
type Location struct {
	// Path is the resolved location of the mailbox.
	Path string

	// Args contains format-specific constructor settings.
	Args map[string]string
}

// Format recognizes and constructs handlers for one mailbox format.
type Format interface {
	// Name returns the format name (e.g., "maildir", "mbox").
	Name() string

	// ParseLocation decides whether path holds a mailbox of this format.
	// With create set, a missing mailbox is created and only a failure to
	// create it is a non-match. ok=false is an ordinary negative result.
	// A cancellation error (context.Canceled, context.DeadlineExceeded or
	// errors.ErrAborted) stops detection; any other error counts as no match.
	ParseLocation(ctx context.Context, cfg Config, path string, create bool) (loc Location, ok bool, err error)

	// Construct builds a handler from a Location returned by ParseLocation.
	Construct(loc Location) (Handler, error)
}

// Persister is implemented by formats whose handlers can be wrapped in a
// persistent Mailbox.
type Persister interface {
	// Persist wraps a handler built by this format's Construct.
	Persist(h Handler, opts ...Option) (Persistent, error)
}
