// Package capture defines the bundle and capture model: the in-memory
// representation of captured pages and the named bundles that group them.
// Mutation policy lives in the bundles package; this package holds the types
// and pure helpers.
package capture

import (
	"encoding/json"

	"github.com/dustin/go-humanize"
)

// Capacity limits for the bundle collection.
const (
	MaxBundles     = 50
	MaxBundlePages = 20
)

// Bundle is a named, ordered collection of captures. Page order is
// meaningful: it reflects capture order and manual reordering.
type Bundle struct {
	// ID is an opaque unique identifier, assigned at creation, immutable.
	ID string `json:"id"`

	// Name is the display label; defaults to the capturing page's domain
	// or a sequence number.
	Name string `json:"name"`

	// Pages holds the captures in insertion order.
	Pages []Capture `json:"pages"`

	// CreatedAt is the Unix timestamp when the bundle was created.
	CreatedAt int64 `json:"created_at"`

	// Expanded is UI-only state, persisted for convenience.
	Expanded bool `json:"expanded"`
}

// Capture is a single captured page: extracted content, metadata, and an
// optional screenshot. A capture belongs to exactly one bundle at a time.
type Capture struct {
	URL   string `json:"url"`
	Title string `json:"title"`

	// EditedURL and EditedTitle are operator overrides. When present they
	// take precedence everywhere: display, export, and the dedup key.
	EditedURL   string `json:"edited_url,omitempty"`
	EditedTitle string `json:"edited_title,omitempty"`

	// Extracted content. Opaque to the model; only sizes are inspected.
	HTML   string   `json:"html,omitempty"`
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`

	// Screenshot is an optional base64-encoded bitmap, at most one per
	// capture.
	Screenshot string `json:"screenshot,omitempty"`

	// SelectedImages is the subset of Images chosen for export.
	SelectedImages []string `json:"selected_images,omitempty"`

	// Export toggles, default true.
	IncludeHTML       bool `json:"include_html"`
	IncludeImages     bool `json:"include_images"`
	IncludeScreenshot bool `json:"include_screenshot"`

	CapturedAt int64 `json:"captured_at,omitempty"`
}

// Clone returns a deep copy of the capture.
func (c Capture) Clone() Capture {
	out := c
	out.Images = append([]string(nil), c.Images...)
	out.SelectedImages = append([]string(nil), c.SelectedImages...)
	return out
}

// Clone returns a deep copy of the bundle and its pages.
func (b *Bundle) Clone() *Bundle {
	out := *b
	out.Pages = make([]Capture, len(b.Pages))
	for i := range b.Pages {
		out.Pages[i] = b.Pages[i].Clone()
	}
	return &out
}

// State is the root of the persisted and in-memory capture state.
type State struct {
	Bundles  []*Bundle `json:"bundles"`
	Settings Settings  `json:"settings"`
}

// New returns a capture for the given page with export toggles defaulted on.
func New(url, title string) Capture {
	return Capture{
		URL:               url,
		Title:             title,
		IncludeHTML:       true,
		IncludeImages:     true,
		IncludeScreenshot: true,
	}
}

// EffectiveURL returns the operator-edited URL when set, else the extracted
// one. This is the dedup key within a bundle.
func (c *Capture) EffectiveURL() string {
	if c.EditedURL != "" {
		return c.EditedURL
	}
	return c.URL
}

// EffectiveTitle returns the operator-edited title when set, else the
// extracted one.
func (c *Capture) EffectiveTitle() string {
	if c.EditedTitle != "" {
		return c.EditedTitle
	}
	return c.Title
}

// ContentSize returns the total byte size of the capture's extracted
// content and screenshot.
func (c *Capture) ContentSize() int {
	size := len(c.HTML) + len(c.Text) + len(c.Screenshot)
	for _, img := range c.Images {
		size += len(img)
	}
	return size
}

// ContentSizeHuman returns the content size as a human-readable string.
func (c *Capture) ContentSizeHuman() string {
	return humanize.Bytes(uint64(c.ContentSize()))
}

// IsImageSelected reports membership of an image in the export selection.
func (c *Capture) IsImageSelected(img string) bool {
	for _, s := range c.SelectedImages {
		if s == img {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes a capture while defaulting the export toggles to
// true when absent. Stored captures from before the toggles existed must
// come back with everything included.
func (c *Capture) UnmarshalJSON(data []byte) error {
	type alias Capture
	aux := struct {
		IncludeHTML       *bool `json:"include_html"`
		IncludeImages     *bool `json:"include_images"`
		IncludeScreenshot *bool `json:"include_screenshot"`
		*alias
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.IncludeHTML = aux.IncludeHTML == nil || *aux.IncludeHTML
	c.IncludeImages = aux.IncludeImages == nil || *aux.IncludeImages
	c.IncludeScreenshot = aux.IncludeScreenshot == nil || *aux.IncludeScreenshot
	return nil
}
