package mbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/infodancer/mailboxes"
	"github.com/infodancer/mailboxes/errors"
)

// Priority is the probe priority used by Register. Any regular file
// starting with an envelope line qualifies, so mbox is probed late.
const Priority = 90

// Register adds the mbox format to r at Priority.
func Register(r *mailboxes.Registry) {
	r.Register(Priority, Format{})
}

// Format recognizes and constructs mbox handlers.
type Format struct{}

// Name implements mailboxes.Format.
func (Format) Name() string {
	return Type
}

// ParseLocation accepts a regular file that starts with an envelope line.
// An empty file is accepted only when creating; with create set, a
// missing file is created empty.
func (Format) ParseLocation(ctx context.Context, cfg mailboxes.Config, path string, create bool) (mailboxes.Location, bool, error) {
	loc := mailboxes.Location{Path: path}

	info, err := os.Stat(path)
	if os.IsNotExist(err) && create {
		if err := ctx.Err(); err != nil {
			return mailboxes.Location{}, false, err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return mailboxes.Location{}, false, err
		}
		return loc, true, f.Close()
	}
	if err != nil {
		return mailboxes.Location{}, false, err
	}
	if !info.Mode().IsRegular() {
		return mailboxes.Location{}, false, nil
	}
	if info.Size() == 0 {
		return loc, create, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return mailboxes.Location{}, false, err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(fromLine))
	if _, err := io.ReadFull(f, head); err != nil {
		return mailboxes.Location{}, false, nil
	}
	return loc, bytes.Equal(head, fromLine), nil
}

// Construct implements mailboxes.Format.
func (Format) Construct(loc mailboxes.Location) (mailboxes.Handler, error) {
	return Open(loc.Path)
}

// Persist implements mailboxes.Persister.
func (Format) Persist(h mailboxes.Handler, opts ...mailboxes.Option) (mailboxes.Persistent, error) {
	m, ok := h.(*Mbox)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an mbox handler", errors.ErrNotPersistable, h)
	}
	return mailboxes.Wrap[State](m, opts...), nil
}

// Compile-time interface verification.
var (
	_ mailboxes.Format             = Format{}
	_ mailboxes.Persister          = Format{}
	_ mailboxes.Snapshotter[State] = (*Mbox)(nil)
	_ mailboxes.Appender           = (*Mbox)(nil)
	_ mailboxes.Persistent         = (*mailboxes.Mailbox[State, *Mbox])(nil)
)
