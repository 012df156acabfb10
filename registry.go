package mailboxes

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/infodancer/mailboxes/errors"
)

// Registration pairs a format with its probe priority.
type Registration struct {
	Priority int
	Format   Format
}

// Registry holds the formats known to the application, ordered by
// ascending priority. Lower priorities are probed first, so formats with
// distinctive markers should register below generic fallbacks.
//
// Register is not synchronized: all registration must happen during startup,
// before any concurrent detection. Detection never mutates the registry.
type Registry struct {
	regs []Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a format at the given priority. Equal priorities keep
// registration order. Registering the same format twice is allowed; it is
// then probed twice.
// It panics if called with a nil format.
func (r *Registry) Register(priority int, f Format) {
	if f == nil {
		panic("mailboxes: Register called with nil format")
	}
	r.regs = append(r.regs, Registration{Priority: priority, Format: f})
	sort.SliceStable(r.regs, func(i, j int) bool {
		return r.regs[i].Priority < r.regs[j].Priority
	})
}

// Registrations returns a copy of the registrations in probe order.
func (r *Registry) Registrations() []Registration {
	return append([]Registration(nil), r.regs...)
}

// Formats returns the registered format names in probe order.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.regs))
	for _, reg := range r.regs {
		names = append(names, reg.Format.Name())
	}
	return names
}

// IsMailbox reports whether any registered format accepts path.
// The only error returned is a cancellation.
func (r *Registry) IsMailbox(ctx context.Context, path string, cfg Config) (bool, error) {
	_, _, err := r.probe(ctx, path, cfg, false)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotAMailbox) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OpenMailbox constructs a handler for path using the first format, in
// priority order, that accepts it. If none does it returns a
// *errors.NotAMailboxError. Errors from the accepting format's Construct
// are returned unchanged.
func (r *Registry) OpenMailbox(ctx context.Context, path string, cfg Config, create bool) (Handler, error) {
	f, loc, err := r.probe(ctx, path, cfg, create)
	if err != nil {
		return nil, err
	}
	return f.Construct(loc)
}

// OpenPersistent is OpenMailbox followed by wrapping the handler in a
// persistent Mailbox. It returns errors.ErrNotPersistable if the accepting
// format does not implement Persister.
func (r *Registry) OpenPersistent(ctx context.Context, path string, cfg Config, create bool, opts ...Option) (Persistent, error) {
	f, loc, err := r.probe(ctx, path, cfg, create)
	if err != nil {
		return nil, err
	}
	p, ok := f.(Persister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.Name(), errors.ErrNotPersistable)
	}
	h, err := f.Construct(loc)
	if err != nil {
		return nil, err
	}
	return p.Persist(h, opts...)
}

// probe returns the first format accepting path along with its location.
func (r *Registry) probe(ctx context.Context, path string, cfg Config, create bool) (Format, Location, error) {
	for _, reg := range r.regs {
		if err := ctx.Err(); err != nil {
			return nil, Location{}, err
		}

		loc, ok, err := reg.Format.ParseLocation(ctx, cfg, path, create)
		if err != nil {
			if isCancellation(ctx, err) {
				return nil, Location{}, err
			}
			slog.Debug("mailbox probe failed",
				slog.String("format", reg.Format.Name()),
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}
		if ok {
			slog.Debug("mailbox probe matched",
				slog.String("format", reg.Format.Name()),
				slog.String("path", path))
			return reg.Format, loc, nil
		}
	}
	return nil, Location{}, &errors.NotAMailboxError{Path: path}
}

// isCancellation reports whether a probe error must stop detection.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, errors.ErrAborted)
}
