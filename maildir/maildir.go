package maildir

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/emersion/go-maildir"
	"github.com/infodancer/mailboxes/errors"
)

// Type is the format name of maildir handlers.
const Type = "maildir"

// State is the serializable state of a Maildir.
type State struct {
	// Path is the maildir directory.
	Path string `json:"path"`

	// Messages maps maildir keys to their files.
	Messages map[string]Entry `json:"messages"`
}

// Entry locates one message within a maildir.
type Entry struct {
	// File is the message path relative to the maildir (e.g., "cur/123.abc:2,S").
	File string `json:"file"`

	// Flags holds the maildir info flags (e.g., "RS").
	Flags string `json:"flags,omitempty"`
}

// Maildir is the handler for a single maildir directory.
type Maildir struct {
	path string
	toc  map[string]Entry

	// keys caches the sorted TOC keys; rebuilt on demand.
	keys []string
}

// New creates a Maildir handler for path with an empty TOC.
// It does not touch the filesystem; call RefreshTOC to load messages.
func New(path string) *Maildir {
	return &Maildir{path: path, toc: make(map[string]Entry)}
}

// Open creates a Maildir handler for an existing maildir and loads its TOC.
func Open(path string) (*Maildir, error) {
	m := New(path)
	if err := m.RefreshTOC(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the maildir path.
func (m *Maildir) Path() string {
	return m.path
}

// Type implements mailboxes.Snapshotter.
func (m *Maildir) Type() string {
	return Type
}

func (m *Maildir) String() string {
	return Type + ":" + m.path
}

// RefreshTOC rescans cur/ and new/. Messages in new/ are not moved to cur/.
// Files whose names go-maildir cannot parse are keyed by their name up to
// the first ":", or the whole name when there is none.
func (m *Maildir) RefreshTOC() error {
	if !exists(m.path) {
		return fmt.Errorf("%w: %s", errors.ErrMailboxNotFound, m.path)
	}

	toc := make(map[string]Entry)
	parsed := make(map[string]bool)

	// Messages returns what it could parse along with an error for the
	// rest; those files are picked up by the cur/ scan below.
	msgs, err := maildir.Dir(m.path).Messages()
	if err != nil {
		slog.Debug("maildir has unparsable entries",
			slog.String("path", m.path),
			slog.Any("error", err))
	}
	for _, msg := range msgs {
		rel, err := filepath.Rel(m.path, msg.Filename())
		if err != nil {
			return err
		}
		toc[msg.Key()] = Entry{File: rel, Flags: flagString(msg.Flags())}
		parsed[rel] = true
	}

	for _, sub := range []string{"cur", "new"} {
		entries, err := os.ReadDir(filepath.Join(m.path, sub))
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry.Name()
			rel := filepath.Join(sub, name)
			if entry.IsDir() || strings.HasPrefix(name, ".") || parsed[rel] {
				continue
			}
			key, info, _ := strings.Cut(name, ":")
			if _, seen := toc[key]; !seen {
				entry := Entry{File: rel}
				if flags, ok := strings.CutPrefix(info, "2,"); ok {
					entry.Flags = flags
				}
				toc[key] = entry
			}
		}
	}

	m.toc = toc
	m.keys = nil
	return nil
}

// FileByKey opens the message stored under a maildir key.
func (m *Maildir) FileByKey(tocID string) (io.ReadSeekCloser, error) {
	entry, ok := m.toc[tocID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, tocID)
	}

	f, err := os.Open(filepath.Join(m.path, entry.File))
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	// Another reader may have moved it to cur/ or changed its flags.
	msg, lookupErr := maildir.Dir(m.path).MessageByKey(tocID)
	if lookupErr != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, tocID)
	}
	return os.Open(msg.Filename())
}

// Len returns the number of messages in the TOC.
func (m *Maildir) Len() int {
	return len(m.toc)
}

// Keys yields maildir keys in lexical order, which for generated
// filenames is delivery order.
func (m *Maildir) Keys() iter.Seq[string] {
	if m.keys == nil {
		m.keys = slices.Sorted(maps.Keys(m.toc))
	}
	return slices.Values(m.keys)
}

// Flags returns IMAP flags for a message.
func (m *Maildir) Flags(tocID string) []string {
	entry, ok := m.toc[tocID]
	if !ok {
		return nil
	}
	var flags []maildir.Flag
	for _, r := range entry.Flags {
		flags = append(flags, maildir.Flag(r))
	}
	return convertFlags(flags)
}

// Add writes a message using the safe delivery process: tmp/ first,
// then a rename into new/. It returns the new message's key.
func (m *Maildir) Add(message io.Reader) (string, error) {
	if !exists(m.path) {
		return "", fmt.Errorf("%w: %s", errors.ErrMailboxNotFound, m.path)
	}

	filename := generateFilename()
	tmpPath := filepath.Join(m.path, "tmp", filename)
	newPath := filepath.Join(m.path, "new", filename)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(f, message)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, newPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	m.toc[filename] = Entry{File: filepath.Join("new", filename)}
	m.keys = nil
	return filename, nil
}

// Snapshot implements mailboxes.Snapshotter.
func (m *Maildir) Snapshot() State {
	return State{Path: m.path, Messages: maps.Clone(m.toc)}
}

// Restore implements mailboxes.Snapshotter.
func (m *Maildir) Restore(state State) error {
	if state.Path == "" {
		return fmt.Errorf("%w: empty maildir path in snapshot", errors.ErrLocationInvalid)
	}
	m.path = state.Path
	m.toc = maps.Clone(state.Messages)
	if m.toc == nil {
		m.toc = make(map[string]Entry)
	}
	m.keys = nil
	return nil
}

// flagString packs maildir flags into their info-suffix form.
func flagString(flags []maildir.Flag) string {
	var b strings.Builder
	for _, f := range flags {
		b.WriteRune(rune(f))
	}
	return b.String()
}

// convertFlags converts go-maildir flags to IMAP flag strings.
func convertFlags(flags []maildir.Flag) []string {
	var result []string
	for _, f := range flags {
		switch f {
		case maildir.FlagSeen:
			result = append(result, "\\Seen")
		case maildir.FlagReplied:
			result = append(result, "\\Answered")
		case maildir.FlagFlagged:
			result = append(result, "\\Flagged")
		case maildir.FlagDraft:
			result = append(result, "\\Draft")
		case maildir.FlagTrashed:
			result = append(result, "\\Deleted")
		}
	}
	return result
}

// exists checks if path has the required new, cur and tmp subdirectories.
func exists(path string) bool {
	for _, sub := range []string{"new", "cur", "tmp"} {
		info, err := os.Stat(filepath.Join(path, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}
