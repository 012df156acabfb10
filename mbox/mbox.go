// Package mbox provides the mbox format handler for mailboxes.
//
// An mbox is a single file of messages, each introduced by a "From "
// envelope line. A message's TOC ID is the byte offset of its envelope
// line in base 36, so pointers stay short even for large files. The
// stream returned by FileByKey excludes the envelope line and the blank
// line separating it from the next message.
package mbox

import (
	"bufio"
	"bytes"
	"cmp"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/infodancer/mailboxes/errors"
)

// Type is the format name of mbox handlers.
const Type = "mbox"

var fromLine = []byte("From ")

// Span is the byte range of one message body within the file.
type Span struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// State is the serializable state of an Mbox.
type State struct {
	// Path is the mbox file.
	Path string `json:"path"`

	// Messages maps TOC IDs to message spans.
	Messages map[string]Span `json:"messages"`
}

// Mbox is the handler for a single mbox file.
type Mbox struct {
	path string
	toc  map[string]Span

	// Transient: reopened lazily, never part of a snapshot.
	file *os.File
	keys []string
}

// New creates an Mbox handler for path with an empty TOC.
func New(path string) *Mbox {
	return &Mbox{path: path, toc: make(map[string]Span)}
}

// Open creates an Mbox handler for an existing file and loads its TOC.
func Open(path string) (*Mbox, error) {
	m := New(path)
	if err := m.RefreshTOC(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the mbox file path.
func (m *Mbox) Path() string {
	return m.path
}

// Type implements mailboxes.Snapshotter.
func (m *Mbox) Type() string {
	return Type
}

func (m *Mbox) String() string {
	return Type + ":" + m.path
}

// RefreshTOC reopens the file and rescans it for envelope lines.
func (m *Mbox) RefreshTOC() error {
	if err := m.Close(); err != nil {
		return err
	}
	f, err := m.handle()
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	toc, err := scan(f)
	if err != nil {
		return fmt.Errorf("scan %s: %w", m.path, err)
	}
	m.toc = toc
	m.keys = nil
	return nil
}

// FileByKey returns a reader over one message body. Closing it does not
// close the underlying file, which the handler keeps open.
func (m *Mbox) FileByKey(tocID string) (io.ReadSeekCloser, error) {
	span, ok := m.toc[tocID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, tocID)
	}
	f, err := m.handle()
	if err != nil {
		return nil, err
	}
	return messageReader{io.NewSectionReader(f, span.Start, span.End-span.Start)}, nil
}

// Len returns the number of messages in the TOC.
func (m *Mbox) Len() int {
	return len(m.toc)
}

// Keys yields TOC IDs in file order.
func (m *Mbox) Keys() iter.Seq[string] {
	if m.keys == nil {
		m.keys = slices.SortedFunc(maps.Keys(m.toc), func(a, b string) int {
			return cmp.Compare(m.toc[a].Start, m.toc[b].Start)
		})
	}
	return slices.Values(m.keys)
}

// Add appends a message, escaping body lines that would read as envelope
// lines, and returns its TOC ID.
func (m *Mbox) Add(message io.Reader) (string, error) {
	body, err := io.ReadAll(message)
	if err != nil {
		return "", err
	}
	body = escapeFrom(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}

	f, err := os.OpenFile(m.path, os.O_RDWR, 0)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", errors.ErrMailboxNotFound, m.path)
	}
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}
	prefix, err := separator(f, size)
	if err != nil {
		return "", err
	}

	envelope := fmt.Sprintf("From MAILER-DAEMON %s\n", time.Now().UTC().Format(time.ANSIC))
	var buf bytes.Buffer
	buf.WriteString(prefix)
	buf.WriteString(envelope)
	buf.Write(body)
	buf.WriteByte('\n')
	if _, err := f.WriteAt(buf.Bytes(), size); err != nil {
		return "", err
	}

	offset := size + int64(len(prefix))
	key := strconv.FormatInt(offset, 36)
	start := offset + int64(len(envelope))
	m.toc[key] = Span{Start: start, End: start + int64(len(body))}
	m.keys = nil
	return key, nil
}

// Close releases the cached file handle.
func (m *Mbox) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Snapshot implements mailboxes.Snapshotter.
func (m *Mbox) Snapshot() State {
	return State{Path: m.path, Messages: maps.Clone(m.toc)}
}

// Restore implements mailboxes.Snapshotter. Any cached file handle is closed.
func (m *Mbox) Restore(state State) error {
	if state.Path == "" {
		return fmt.Errorf("%w: empty mbox path in snapshot", errors.ErrLocationInvalid)
	}
	_ = m.Close()
	m.path = state.Path
	m.toc = maps.Clone(state.Messages)
	if m.toc == nil {
		m.toc = make(map[string]Span)
	}
	m.keys = nil
	return nil
}

// handle opens the file on first use.
func (m *Mbox) handle() (*os.File, error) {
	if m.file != nil {
		return m.file, nil
	}
	f, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", errors.ErrMailboxNotFound, m.path)
	}
	if err != nil {
		return nil, err
	}
	m.file = f
	return f, nil
}

// scan builds a TOC from mbox content. Anything before the first
// envelope line is ignored.
func scan(r io.Reader) (map[string]Span, error) {
	br := bufio.NewReader(r)
	toc := make(map[string]Span)

	var (
		offset   int64
		key      string
		start    int64
		inMsg    bool
		blankLen int64
	)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if bytes.HasPrefix(line, fromLine) {
				if inMsg {
					toc[key] = Span{Start: start, End: offset - blankLen}
				}
				key = strconv.FormatInt(offset, 36)
				start = offset + int64(len(line))
				inMsg = true
			}
			blankLen = 0
			if s := string(line); s == "\n" || s == "\r\n" {
				blankLen = int64(len(line))
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if inMsg {
		end := offset - blankLen
		if end < start {
			end = start
		}
		toc[key] = Span{Start: start, End: end}
	}
	return toc, nil
}

// escapeFrom prefixes ">" to lines matching ^>*From (mboxrd quoting).
func escapeFrom(body []byte) []byte {
	var out bytes.Buffer
	for line := range bytes.Lines(body) {
		if bytes.HasPrefix(bytes.TrimLeft(line, ">"), fromLine) {
			out.WriteByte('>')
		}
		out.Write(line)
	}
	return out.Bytes()
}

// separator returns what must precede a new envelope line appended at size
// so that it starts a line after a blank line.
func separator(f *os.File, size int64) (string, error) {
	if size == 0 {
		return "", nil
	}
	n := int64(2)
	if size < n {
		n = size
	}
	tail := make([]byte, n)
	if _, err := f.ReadAt(tail, size-n); err != nil {
		return "", err
	}
	switch {
	case bytes.HasSuffix(tail, []byte("\n\n")):
		return "", nil
	case bytes.HasSuffix(tail, []byte("\n")):
		return "\n", nil
	default:
		return "\n\n", nil
	}
}

type messageReader struct {
	*io.SectionReader
}

func (messageReader) Close() error { return nil }
