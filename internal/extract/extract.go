// Package extract defines the contracts for the external capture
// collaborators (the injected content script and the privileged screenshot
// capturer) and the content hygiene applied to what they return.
package extract

import "context"

// Result is what the content script returns for a capture command. Err set
// means the page could not be captured (e.g. a restricted page) and the
// capture flow must short-circuit without mutating any bundle.
type Result struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	HTML     string            `json:"html,omitempty"`
	Text     string            `json:"text,omitempty"`
	Images   []string          `json:"images,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Err      string            `json:"error,omitempty"`
}

// PageExtractor is the content-script side of the capture flow.
type PageExtractor interface {
	ExtractPage(ctx context.Context) (*Result, error)
}

// ScreenshotCapturer is the privileged background capturer. An empty
// screenshot or an error means "no screenshot", which is non-fatal for
// text/HTML-only captures.
type ScreenshotCapturer interface {
	CaptureScreenshot(ctx context.Context) (screenshot string, err error)
}
