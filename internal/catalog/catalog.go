// Package catalog talks to the remote event catalog: bulk sync, per-URL
// lookup, partial event updates, and screenshot media upload. It also owns
// the local match cache and the "currently matched event" reference.
package catalog

// MatchType classifies what a URL lookup resolved to.
type MatchType string

const (
	MatchEvent         MatchType = "event"
	MatchContentItem   MatchType = "content_item"
	MatchLinkDiscovery MatchType = "link_discovery"
	MatchNone          MatchType = "no_match"
)

// MediaAsset is the server-assigned descriptor for an uploaded screenshot.
type MediaAsset struct {
	ID           int64  `json:"id"`
	FileURL      string `json:"file_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Type         string `json:"type"`
}

// Event is a known catalog event. URL fields arrive normalized from the
// server.
type Event struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	URL           string       `json:"url"`
	NormalizedURL string       `json:"normalized_url"`
	EventTypeID   int64        `json:"event_type_id,omitempty"`
	TagIDs        []int64      `json:"tag_ids,omitempty"`
	Distances     []string     `json:"distances,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Media         []MediaAsset `json:"media,omitempty"`
}

// OrganizerLink associates an organizer's page URL with an event.
type OrganizerLink struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"event_id"`
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`
}

// SyncResult is the bulk sync payload.
type SyncResult struct {
	Events         []Event         `json:"events"`
	OrganizerLinks []OrganizerLink `json:"organizer_links"`
}

// LookupResult is the real-time lookup response for a URL.
type LookupResult struct {
	MatchType MatchType `json:"match_type"`
	Event     *Event    `json:"event,omitempty"`
}

// EventPatch is a partial event update. Nil fields are left unchanged.
type EventPatch struct {
	TagIDs      *[]int64  `json:"tag_ids,omitempty"`
	EventTypeID *int64    `json:"event_type_id,omitempty"`
	Distances   *[]string `json:"distances,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}
