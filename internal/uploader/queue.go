// Package uploader manages concurrent, retryable, progress-tracked
// screenshot uploads. Items are independent: any number may be uploading at
// once with no ordering guarantee between completions, and a failure in one
// never touches another. Queue state is process-wide and deliberately not
// persisted; a restart loses in-flight and failed items.
package uploader

import (
	"context"
	"sync"
	"time"

	"github.com/clipworks/evclip/internal/catalog"
	"github.com/clipworks/evclip/internal/errors"
	"github.com/clipworks/evclip/internal/idgen"
)

// Status is the upload state machine: uploading -> complete, or
// uploading -> failed -> uploading (retry). There is no cancelled state; an
// in-flight upload runs to completion or failure.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Item tracks one screenshot upload.
type Item struct {
	ID         string
	EventID    int64
	EventName  string
	ImageData  string
	Thumbnail  string
	Filename   string
	Status     Status
	Progress   int    // 0-100, monotonic while uploading
	Error      string // set only when failed
	MediaAsset *catalog.MediaAsset
}

// Transport performs one upload request. The progress callback receives
// strictly ordered, monotonic byte counts for the request; the call returns
// exactly once, with the server-assigned asset or an error.
type Transport interface {
	UploadMedia(ctx context.Context, eventID int64, filename, imageData string, progress func(sent, total int64)) (*catalog.MediaAsset, error)
}

// Notifier surfaces transient user-facing messages (upload failures).
type Notifier func(msg string)

// Options tunes queue behavior. Zero values take the production defaults:
// 60s timeout, 1.5s completion GC.
type Options struct {
	Timeout  time.Duration
	GCDelay  time.Duration
	Notify   Notifier
	OnChange func() // called after any item state change, for rendering
}

// Queue owns the upload items and their transfers.
type Queue struct {
	mu        sync.Mutex
	items     []*Item
	transport Transport
	match     *catalog.MatchState
	opts      Options
}

// New creates a queue. match may be nil when no catalog selection exists
// (completed uploads then reconcile nowhere).
func New(transport Transport, match *catalog.MatchState, opts Options) *Queue {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.GCDelay == 0 {
		opts.GCDelay = 1500 * time.Millisecond
	}
	return &Queue{transport: transport, match: match, opts: opts}
}

// Enqueue pushes a new uploading item and starts its transfer without
// waiting for it: the item snapshot returns synchronously so the caller can
// render it at once. A thumbnail is generated immediately for optimistic
// display; thumbnail failures are non-fatal.
func (q *Queue) Enqueue(eventID int64, eventName, imageData, filename string) Item {
	thumb, err := Thumbnail(imageData, DefaultThumbnailDim, DefaultThumbnailQuality)
	if err != nil {
		thumb = ""
	}

	item := &Item{
		ID:        idgen.New(),
		EventID:   eventID,
		EventName: eventName,
		ImageData: imageData,
		Thumbnail: thumb,
		Filename:  filename,
		Status:    StatusUploading,
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	snapshot := *item
	q.mu.Unlock()

	q.changed()
	go q.run(item.ID)
	return snapshot
}

// Retry restarts a failed item: progress back to 0, state back to
// uploading, same transfer mechanics. Valid only from failed.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	item := q.byID(id)
	if item == nil {
		q.mu.Unlock()
		return errors.NewNotFound(id)
	}
	if item.Status != StatusFailed {
		q.mu.Unlock()
		return errors.NewInvalidRequest("only failed uploads can be retried")
	}
	item.Status = StatusUploading
	item.Progress = 0
	item.Error = ""
	q.mu.Unlock()

	q.changed()
	go q.run(id)
	return nil
}

// Items returns snapshots of all queue items in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	for i, item := range q.items {
		out[i] = *item
	}
	return out
}

// Get returns a snapshot of one item.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item := q.byID(id); item != nil {
		return *item, true
	}
	return Item{}, false
}

// run performs the transfer for one item and applies the terminal
// transition. It owns no locks across the network call.
func (q *Queue) run(id string) {
	q.mu.Lock()
	item := q.byID(id)
	if item == nil {
		q.mu.Unlock()
		return
	}
	eventID, filename, data := item.EventID, item.Filename, item.ImageData
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.opts.Timeout)
	defer cancel()

	asset, err := q.transport.UploadMedia(ctx, eventID, filename, data, func(sent, total int64) {
		if total > 0 {
			q.setProgress(id, int(sent*100/total))
		}
	})
	if err != nil {
		q.fail(id, err)
		return
	}
	q.complete(id, asset)
}

// setProgress updates an item's progress, keeping it monotonically
// non-decreasing and only while uploading.
func (q *Queue) setProgress(id string, pct int) {
	q.mu.Lock()
	item := q.byID(id)
	if item == nil || item.Status != StatusUploading || pct <= item.Progress {
		q.mu.Unlock()
		return
	}
	if pct > 100 {
		pct = 100
	}
	item.Progress = pct
	q.mu.Unlock()
	q.changed()
}

// complete marks an item done, reconciles the media descriptor into the
// matched event (guarded against the operator having navigated to a
// different event since enqueue), and schedules removal from the visible
// queue after the GC delay so the operator sees the checkmark first.
func (q *Queue) complete(id string, asset *catalog.MediaAsset) {
	q.mu.Lock()
	item := q.byID(id)
	if item == nil {
		q.mu.Unlock()
		return
	}
	item.Status = StatusComplete
	item.Progress = 100
	item.Error = ""
	item.MediaAsset = asset
	eventID := item.EventID
	q.mu.Unlock()

	if q.match != nil && asset != nil {
		q.match.AppendMedia(eventID, *asset)
	}
	q.changed()

	time.AfterFunc(q.opts.GCDelay, func() {
		q.removeIfComplete(id)
	})
}

// fail marks an item failed with a human-readable reason and surfaces a
// notification. Failed items stay visible until retried or the queue's
// process ends.
func (q *Queue) fail(id string, err error) {
	reason := "upload failed"
	if cErr, ok := err.(*errors.ClipError); ok {
		reason = cErr.Message
	} else if err != nil {
		reason = err.Error()
	}

	q.mu.Lock()
	item := q.byID(id)
	if item == nil {
		q.mu.Unlock()
		return
	}
	item.Status = StatusFailed
	item.Error = reason
	filename := item.Filename
	q.mu.Unlock()

	if q.opts.Notify != nil {
		q.opts.Notify("upload of " + filename + " failed: " + reason)
	}
	q.changed()
}

// removeIfComplete drops a completed item from the visible queue. A retry
// racing the GC timer is impossible (complete is terminal), but the status
// check keeps the removal safe regardless.
func (q *Queue) removeIfComplete(id string) {
	q.mu.Lock()
	removed := false
	for i, item := range q.items {
		if item.ID == id && item.Status == StatusComplete {
			q.items = append(q.items[:i], q.items[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()
	if removed {
		q.changed()
	}
}

func (q *Queue) byID(id string) *Item {
	for _, item := range q.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (q *Queue) changed() {
	if q.opts.OnChange != nil {
		q.opts.OnChange()
	}
}
