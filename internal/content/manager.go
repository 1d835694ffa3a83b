package content

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrNotLoaded is returned by ReadyErr until the first snapshot is set.
var ErrNotLoaded = errors.New("content: no snapshot loaded")

// Manager holds the active snapshot. Readers never block; a swap is a
// single pointer store.
type Manager struct {
	active atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Set replaces the active snapshot.
func (m *Manager) Set(s Snapshot) {
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now().UTC()
	}
	m.active.Store(&s)
}

// Get returns the active snapshot; ok is false until one with a store is set.
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil && s.Store != nil
}

// ReadyErr is the readiness probe for content.
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return ErrNotLoaded
	}
	return nil
}

// Store returns the active store, or an empty one before the first load so
// handlers can query unconditionally.
func (m *Manager) Store() *Store {
	if s, ok := m.Get(); ok {
		return s.Store
	}
	return NewStore(nil, nil)
}

// current is the active snapshot or a zero value.
func (m *Manager) current() Snapshot {
	if s := m.active.Load(); s != nil {
		return *s
	}
	return Snapshot{Meta: Meta{Source: SourceUnknown}}
}

// ContentHash and FetchedAt implement httpmw.ContentInfo.
func (m *Manager) ContentHash() string { return m.current().Meta.SHA256 }

func (m *Manager) FetchedAt() string { return m.current().Meta.FetchedAt }

func (m *Manager) Source() Source { return m.current().Meta.Source }

func (m *Manager) LoadedAt() time.Time { return m.current().LoadedAt }
