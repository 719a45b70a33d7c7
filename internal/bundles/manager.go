// Package bundles owns all mutation of the bundle/capture state: creation,
// capture routing, duplicate detection, page movement, and removal. Every
// mutating operation is all-or-nothing and persists the state before
// returning.
package bundles

import (
	"fmt"
	"sync"
	"time"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/errors"
	"github.com/clipworks/evclip/internal/idgen"
)

// Persister is the durable side of the manager. Save is fire-and-forget:
// failures are the persister's to log, the in-memory state stays
// authoritative.
type Persister interface {
	Save(state *capture.State)
}

// Manager is the single coordinator for bundle/capture state. All reads and
// writes go through its methods; there is no other path to the state.
type Manager struct {
	mu    sync.Mutex
	state *capture.State
	store Persister
}

// NewManager wraps a loaded state. The persister may be nil for callers
// that manage durability themselves (tests).
func NewManager(state *capture.State, store Persister) *Manager {
	if state.Bundles == nil {
		state.Bundles = []*capture.Bundle{}
	}
	return &Manager{state: state, store: store}
}

// persist writes the state after a mutation. Issued synchronously so the
// stored document never lags the last user-visible action; the write itself
// never fails the mutation.
func (m *Manager) persist() {
	if m.store != nil {
		m.store.Save(m.state)
	}
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() capture.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Settings
}

// UpdateSettings replaces the settings and persists.
func (m *Manager) UpdateSettings(s capture.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Settings = s
	m.persist()
}

// Bundles returns deep copies of the bundles in order. Callers may read or
// serialize them without holding the manager's lock.
func (m *Manager) Bundles() []*capture.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*capture.Bundle, len(m.state.Bundles))
	for i, b := range m.state.Bundles {
		out[i] = b.Clone()
	}
	return out
}

// Bundle returns a deep copy of the bundle with the given id.
func (m *Manager) Bundle(id string) (*capture.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bundleByID(id)
	if b == nil {
		return nil, errors.NewNotFound(id)
	}
	return b.Clone(), nil
}

func (m *Manager) bundleByID(id string) *capture.Bundle {
	for _, b := range m.state.Bundles {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// CreateBundle appends a new bundle, started expanded. Returns nil and a
// capacity error at the bundle cap. An empty name defaults to a sequence
// number.
func (m *Manager) CreateBundle(name string) (*capture.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.createBundleLocked(name)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

func (m *Manager) createBundleLocked(name string) (*capture.Bundle, error) {
	if len(m.state.Bundles) >= capture.MaxBundles {
		return nil, errors.NewBundleLimit(capture.MaxBundles)
	}
	if name == "" {
		name = fmt.Sprintf("Bundle %d", len(m.state.Bundles)+1)
	}
	b := &capture.Bundle{
		ID:        idgen.New(),
		Name:      name,
		Pages:     []capture.Capture{},
		CreatedAt: time.Now().Unix(),
		Expanded:  true,
	}
	m.state.Bundles = append(m.state.Bundles, b)
	m.persist()
	return b, nil
}

// FindBundleForDomain returns a copy of the bundle whose name equals the
// domain, or nil. Used only when auto-grouping is enabled.
func (m *Manager) FindBundleForDomain(domain string) *capture.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.findBundleForDomainLocked(domain); b != nil {
		return b.Clone()
	}
	return nil
}

func (m *Manager) findBundleForDomainLocked(domain string) *capture.Bundle {
	for _, b := range m.state.Bundles {
		if b.Name == domain {
			return b
		}
	}
	return nil
}

// ResolveTarget picks the bundle a new capture lands in and returns a copy
// of it. With auto-grouping on, it is the bundle named after the page's
// domain, created on demand. Otherwise it is the current working bundle (the
// most recently created), with a fresh one created when none exists or it
// is full.
func (m *Manager) ResolveTarget(domain string) (*capture.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.resolveTargetLocked(domain)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

func (m *Manager) resolveTargetLocked(domain string) (*capture.Bundle, error) {
	if m.state.Settings.AutoGroupByDomain && domain != "" {
		if b := m.findBundleForDomainLocked(domain); b != nil {
			return b, nil
		}
		return m.createBundleLocked(domain)
	}

	if n := len(m.state.Bundles); n > 0 {
		working := m.state.Bundles[n-1]
		if len(working.Pages) < capture.MaxBundlePages {
			return working, nil
		}
	}
	return m.createBundleLocked("")
}

// FindDuplicate scans the bundle for a page whose effective URL exactly
// equals the given URL. Duplicate detection is scoped to the target bundle
// only; cross-bundle duplicates are allowed.
func (m *Manager) FindDuplicate(bundleID, url string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bundleByID(bundleID)
	if b == nil {
		return 0, false
	}
	return findDuplicateIn(b, url)
}

func findDuplicateIn(b *capture.Bundle, url string) (int, bool) {
	for i := range b.Pages {
		if b.Pages[i].EffectiveURL() == url {
			return i, true
		}
	}
	return 0, false
}

// AddCapture inserts a capture into the bundle and returns its index. A
// valid replaceIndex overwrites in place (operator-confirmed duplicate
// replacement); pass -1 to append, which fails at the page cap with no
// mutation. On success the bundle is expanded so the new page is visible.
func (m *Manager) AddCapture(bundleID string, c capture.Capture, replaceIndex int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bundleByID(bundleID)
	if b == nil {
		return 0, errors.NewNotFound(bundleID)
	}

	var idx int
	if replaceIndex >= 0 && replaceIndex < len(b.Pages) {
		b.Pages[replaceIndex] = c
		idx = replaceIndex
	} else {
		if len(b.Pages) >= capture.MaxBundlePages {
			return 0, errors.NewPageLimit(b.Name, capture.MaxBundlePages)
		}
		b.Pages = append(b.Pages, c)
		idx = len(b.Pages) - 1
	}
	b.Expanded = true
	m.persist()
	return idx, nil
}

// MovePage atomically removes a page from the source bundle and appends it
// to the target, expanding the target. Fails with no mutation when the
// target is at capacity. Both the drag-and-drop interaction and the
// explicit move command go through here.
func (m *Manager) MovePage(sourceBundleID string, pageIndex int, targetBundleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.bundleByID(sourceBundleID)
	if src == nil {
		return errors.NewNotFound(sourceBundleID)
	}
	dst := m.bundleByID(targetBundleID)
	if dst == nil {
		return errors.NewNotFound(targetBundleID)
	}
	if pageIndex < 0 || pageIndex >= len(src.Pages) {
		return errors.NewInvalidRequest(fmt.Sprintf("page index %d out of range", pageIndex))
	}
	// Moving within the same bundle frees its own slot.
	if src != dst && len(dst.Pages) >= capture.MaxBundlePages {
		return errors.NewPageLimit(dst.Name, capture.MaxBundlePages)
	}

	page := src.Pages[pageIndex]
	src.Pages = append(src.Pages[:pageIndex], src.Pages[pageIndex+1:]...)
	dst.Pages = append(dst.Pages, page)
	dst.Expanded = true
	m.persist()
	return nil
}

// RemovePage deletes a page from a bundle.
func (m *Manager) RemovePage(bundleID string, pageIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bundleByID(bundleID)
	if b == nil {
		return errors.NewNotFound(bundleID)
	}
	if pageIndex < 0 || pageIndex >= len(b.Pages) {
		return errors.NewInvalidRequest(fmt.Sprintf("page index %d out of range", pageIndex))
	}
	b.Pages = append(b.Pages[:pageIndex], b.Pages[pageIndex+1:]...)
	m.persist()
	return nil
}

// DeleteBundle removes a bundle and all its pages.
func (m *Manager) DeleteBundle(bundleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, b := range m.state.Bundles {
		if b.ID == bundleID {
			m.state.Bundles = append(m.state.Bundles[:i], m.state.Bundles[i+1:]...)
			m.persist()
			return nil
		}
	}
	return errors.NewNotFound(bundleID)
}

// ClearAll removes every bundle.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Bundles = []*capture.Bundle{}
	m.persist()
}
