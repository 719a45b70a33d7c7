package bundles

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/errors"
	"github.com/clipworks/evclip/internal/extract"
	"github.com/clipworks/evclip/internal/urlx"
)

// Outcome is the result of a capture attempt. When Duplicate is set no
// mutation has been applied: Pending holds the capture awaiting the
// operator's replace-or-skip decision against DuplicateIndex.
type Outcome struct {
	BundleID       string
	BundleName     string
	PageIndex      int
	Duplicate      bool
	DuplicateIndex int
	Pending        *capture.Capture
}

// PendingShot is a screenshot captured under the on_save upload policy that
// has not been sent yet. Navigation away with pending shots must be
// intercepted by the caller (save / discard / cancel).
type PendingShot struct {
	EventID   int64
	EventName string
	Filename  string
	ImageData string
}

// Flow drives the capture sequence: extract, clean, route, dedup-check,
// insert, and dispatch the screenshot upload according to the upload-timing
// setting.
type Flow struct {
	mgr       *Manager
	extractor extract.PageExtractor
	shooter   extract.ScreenshotCapturer

	// ActiveEvent reports the currently matched event, if any. Uploads are
	// stamped with this target at capture time.
	ActiveEvent func() (id int64, name string, ok bool)

	// EnqueueUpload hands a screenshot to the upload queue. Must not
	// block.
	EnqueueUpload func(eventID int64, eventName, imageData, filename string)

	mu      sync.Mutex
	pending []PendingShot
}

// NewFlow creates a capture flow. The screenshot capturer may be nil for
// text/HTML-only setups.
func NewFlow(mgr *Manager, extractor extract.PageExtractor, shooter extract.ScreenshotCapturer) *Flow {
	return &Flow{mgr: mgr, extractor: extractor, shooter: shooter}
}

// CapturePage runs one capture against the live extractor. Extraction
// failures short-circuit with no bundle mutation; a missing screenshot is
// non-fatal.
func (f *Flow) CapturePage(ctx context.Context, withScreenshot bool) (*Outcome, error) {
	r, err := f.extractor.ExtractPage(ctx)
	if err != nil {
		return nil, errors.NewUnreachable(fmt.Sprintf("cannot reach the active tab: %v", err))
	}

	shot := ""
	if withScreenshot && f.shooter != nil {
		if s, err := f.shooter.CaptureScreenshot(ctx); err == nil {
			shot = s
		}
	}
	return f.Ingest(r, shot)
}

// Ingest runs the capture sequence on an already-extracted page: clean,
// route, dedup-check, insert, dispatch. A duplicate in the resolved target
// bundle is returned as a decision point, not applied.
func (f *Flow) Ingest(r *extract.Result, screenshot string) (*Outcome, error) {
	if r.Err != "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot capture this page: %s", r.Err))
	}
	extract.Clean(r)

	c := capture.New(r.URL, r.Title)
	c.HTML = r.HTML
	c.Text = r.Text
	c.Images = r.Images
	c.Screenshot = screenshot
	c.CapturedAt = time.Now().Unix()

	target, err := f.mgr.ResolveTarget(urlx.Host(r.URL))
	if err != nil {
		return nil, err
	}

	if idx, found := f.mgr.FindDuplicate(target.ID, c.EffectiveURL()); found {
		return &Outcome{
			BundleID:       target.ID,
			BundleName:     target.Name,
			Duplicate:      true,
			DuplicateIndex: idx,
			Pending:        &c,
		}, nil
	}

	idx, err := f.mgr.AddCapture(target.ID, c, -1)
	if err != nil {
		return nil, err
	}
	f.dispatchScreenshot(&c)

	return &Outcome{BundleID: target.ID, BundleName: target.Name, PageIndex: idx}, nil
}

// Apply resolves a duplicate decision point: replaceIndex >= 0 replaces the
// existing page, -1 appends (used when the operator captured into a bundle
// where the URL turned out not to collide after an edit).
func (f *Flow) Apply(bundleID string, c capture.Capture, replaceIndex int) error {
	if _, err := f.mgr.AddCapture(bundleID, c, replaceIndex); err != nil {
		return err
	}
	f.dispatchScreenshot(&c)
	return nil
}

// dispatchScreenshot routes a captured screenshot to the upload queue
// (immediate) or the pending list (on_save). No matched event means no
// upload target and the screenshot stays local to the capture.
func (f *Flow) dispatchScreenshot(c *capture.Capture) {
	if c.Screenshot == "" || f.ActiveEvent == nil {
		return
	}
	eventID, eventName, ok := f.ActiveEvent()
	if !ok {
		return
	}
	filename := screenshotFilename(c.EffectiveTitle(), time.Now())

	if f.mgr.Settings().ScreenshotUploadTiming == capture.UploadImmediate {
		if f.EnqueueUpload != nil {
			f.EnqueueUpload(eventID, eventName, c.Screenshot, filename)
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, PendingShot{
		EventID:   eventID,
		EventName: eventName,
		Filename:  filename,
		ImageData: c.Screenshot,
	})
}

// HasPendingUploads reports whether on_save screenshots are waiting.
func (f *Flow) HasPendingUploads() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) > 0
}

// FlushPendingUploads enqueues every pending screenshot and clears the
// list. Returns the number enqueued.
func (f *Flow) FlushPendingUploads() int {
	f.mu.Lock()
	shots := f.pending
	f.pending = nil
	f.mu.Unlock()

	if f.EnqueueUpload == nil {
		return 0
	}
	for _, s := range shots {
		f.EnqueueUpload(s.EventID, s.EventName, s.ImageData, s.Filename)
	}
	return len(shots)
}

// DiscardPendingUploads drops pending screenshots (the operator chose
// discard).
func (f *Flow) DiscardPendingUploads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
}

// screenshotFilename builds a stable, filesystem-safe name from the page
// title and capture time.
func screenshotFilename(title string, now time.Time) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title)
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "screenshot"
	}
	return fmt.Sprintf("%s-%d.png", slug, now.Unix())
}
