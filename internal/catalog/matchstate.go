package catalog

import "sync"

// MatchState holds the currently matched event: the one the operator is
// looking at. The upload queue stamps each item with its target event id
// and reconciles completed uploads here only when the stamp still matches
// the live selection, so an upload for event A can never land in event B's
// media list.
type MatchState struct {
	mu    sync.Mutex
	event *Event
}

// NewMatchState returns a state with no active event.
func NewMatchState() *MatchState {
	return &MatchState{}
}

// SetActive replaces the active event. Pass nil when navigating away from
// any match.
func (m *MatchState) SetActive(ev *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.event = ev
}

// Active returns a copy of the active event, or nil.
func (m *MatchState) Active() *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.event == nil {
		return nil
	}
	ev := *m.event
	return &ev
}

// ActiveID returns the active event's id and name.
func (m *MatchState) ActiveID() (id int64, name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.event == nil {
		return 0, "", false
	}
	return m.event.ID, m.event.Name, true
}

// AppendMedia adds an asset to the active event's media list iff the event
// id still matches the live selection (the stale-write guard). Returns
// whether the asset was applied.
func (m *MatchState) AppendMedia(eventID int64, asset MediaAsset) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.event == nil || m.event.ID != eventID {
		return false
	}
	m.event.Media = append(m.event.Media, asset)
	return true
}
