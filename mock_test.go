package mailboxes

import (
	"context"
	"io"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/infodancer/mailboxes/errors"
)

// mockState is the snapshot type of mockHandler.
type mockState struct {
	Name     string
	Messages map[string]string
}

// mockHandler is an in-memory Snapshotter that counts calls.
type mockHandler struct {
	name     string
	messages map[string]string

	// transient
	cache     map[string]int
	refreshes int
	restores  int
}

func newMockHandler(name string, messages map[string]string) *mockHandler {
	if messages == nil {
		messages = make(map[string]string)
	}
	return &mockHandler{name: name, messages: messages, cache: map[string]int{"warm": 1}}
}

func (h *mockHandler) Type() string { return "mock" }

func (h *mockHandler) RefreshTOC() error {
	h.refreshes++
	return nil
}

func (h *mockHandler) FileByKey(tocID string) (io.ReadSeekCloser, error) {
	data, ok := h.messages[tocID]
	if !ok {
		return nil, errors.ErrMessageNotFound
	}
	return nopCloser{strings.NewReader(data)}, nil
}

func (h *mockHandler) Len() int { return len(h.messages) }

func (h *mockHandler) Keys() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(h.messages)))
}

func (h *mockHandler) Snapshot() mockState {
	return mockState{Name: h.name, Messages: maps.Clone(h.messages)}
}

func (h *mockHandler) Restore(state mockState) error {
	h.restores++
	h.name = state.Name
	h.messages = maps.Clone(state.Messages)
	h.cache = nil
	return nil
}

func (h *mockHandler) Add(message io.Reader) (string, error) {
	data, err := io.ReadAll(message)
	if err != nil {
		return "", err
	}
	key := string(rune('a' + len(h.messages)))
	h.messages[key] = string(data)
	return key, nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// mockFormat accepts paths listed in accept and builds mockHandlers.
type mockFormat struct {
	name   string
	accept map[string]bool

	// probeErr is returned by every probe when set.
	probeErr error
	// constructErr is returned by Construct when set.
	constructErr error

	probes     []string
	constructs int
}

func (f *mockFormat) Name() string { return f.name }

func (f *mockFormat) ParseLocation(ctx context.Context, cfg Config, path string, create bool) (Location, bool, error) {
	f.probes = append(f.probes, path)
	if f.probeErr != nil {
		return Location{}, false, f.probeErr
	}
	if !f.accept[path] && !(create && cfg.Option("create") == f.name) {
		return Location{}, false, nil
	}
	return Location{Path: path, Args: map[string]string{"format": f.name}}, true, nil
}

func (f *mockFormat) Construct(loc Location) (Handler, error) {
	f.constructs++
	if f.constructErr != nil {
		return nil, f.constructErr
	}
	return newMockHandler(loc.Args["format"], map[string]string{"1": "one"}), nil
}

// persistingFormat is a mockFormat that also implements Persister.
type persistingFormat struct {
	*mockFormat
}

func (f persistingFormat) Persist(h Handler, opts ...Option) (Persistent, error) {
	return Wrap[mockState](h.(*mockHandler), opts...), nil
}

// recordingSession collects Mark notifications.
type recordingSession struct {
	marks []string
}

func (s *recordingSession) Mark(msg string) {
	s.marks = append(s.marks, msg)
}
