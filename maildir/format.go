package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-maildir"
	"github.com/infodancer/mailboxes"
	"github.com/infodancer/mailboxes/errors"
)

// SubdirOption names the Config option holding the maildir subdirectory
// under a user directory (e.g., "Maildir").
const SubdirOption = "maildir_subdir"

// Format recognizes and constructs maildir handlers.
type Format struct{}

// Name implements mailboxes.Format.
func (Format) Name() string {
	return Type
}

// ParseLocation accepts path itself or, with SubdirOption set, its
// subdirectory when either has the maildir structure. With create set a
// missing maildir is created at the subdirectory if configured, else at path.
func (Format) ParseLocation(ctx context.Context, cfg mailboxes.Config, path string, create bool) (mailboxes.Location, bool, error) {
	candidates := []string{filepath.Clean(path)}
	if sub := cfg.Option(SubdirOption); sub != "" {
		subPath, err := subdirPath(path, sub)
		if err != nil {
			return mailboxes.Location{}, false, err
		}
		candidates = append(candidates, subPath)
	}

	for _, candidate := range candidates {
		if exists(candidate) {
			return mailboxes.Location{Path: candidate}, true, nil
		}
	}
	if !create {
		return mailboxes.Location{}, false, nil
	}

	target := candidates[len(candidates)-1]
	if err := ctx.Err(); err != nil {
		return mailboxes.Location{}, false, err
	}
	// Ensure parent directories exist (needed when the subdir is set)
	if err := os.MkdirAll(target, 0700); err != nil {
		return mailboxes.Location{}, false, err
	}
	if err := maildir.Dir(target).Init(); err != nil {
		return mailboxes.Location{}, false, err
	}
	return mailboxes.Location{Path: target}, true, nil
}

// Construct implements mailboxes.Format.
func (Format) Construct(loc mailboxes.Location) (mailboxes.Handler, error) {
	return Open(loc.Path)
}

// Persist implements mailboxes.Persister.
func (Format) Persist(h mailboxes.Handler, opts ...mailboxes.Option) (mailboxes.Persistent, error) {
	m, ok := h.(*Maildir)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a maildir handler", errors.ErrNotPersistable, h)
	}
	return mailboxes.Wrap[State](m, opts...), nil
}

// subdirPath joins sub onto path, refusing results outside path.
func subdirPath(path, sub string) (string, error) {
	cleanBase := filepath.Clean(path)
	candidate := filepath.Clean(filepath.Join(cleanBase, sub))

	// Add separator to prevent prefix matching (e.g., /base-other matching /base)
	if candidate == cleanBase || !strings.HasPrefix(candidate+string(filepath.Separator), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", errors.ErrLocationInvalid, sub, path)
	}
	return candidate, nil
}

// Compile-time interface verification.
var (
	_ mailboxes.Format             = Format{}
	_ mailboxes.Persister          = Format{}
	_ mailboxes.Snapshotter[State] = (*Maildir)(nil)
	_ mailboxes.Appender           = (*Maildir)(nil)
	_ mailboxes.Flagger            = (*Maildir)(nil)
	_ mailboxes.Persistent         = (*mailboxes.Mailbox[State, *Maildir])(nil)
)
