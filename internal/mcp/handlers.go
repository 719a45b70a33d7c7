package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clipworks/evclip/internal/bundles"
	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/catalog"
	"github.com/clipworks/evclip/internal/config"
	"github.com/clipworks/evclip/internal/errors"
	"github.com/clipworks/evclip/internal/export"
	"github.com/clipworks/evclip/internal/extract"
	"github.com/clipworks/evclip/internal/uploader"
)

// Handlers holds dependencies for MCP tool handlers. Client may be nil when
// no API base URL is configured; catalog tools then answer from the local
// cache or fail with a transport error.
type Handlers struct {
	baseDir string
	cfg     *config.Config
	mgr     *bundles.Manager
	flow    *bundles.Flow
	queue   *uploader.Queue
	client  *catalog.Client
	cache   *catalog.Cache
	match   *catalog.MatchState
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(baseDir string, cfg *config.Config, mgr *bundles.Manager, flow *bundles.Flow, queue *uploader.Queue, client *catalog.Client, cache *catalog.Cache, match *catalog.MatchState) *Handlers {
	return &Handlers{
		baseDir: baseDir,
		cfg:     cfg,
		mgr:     mgr,
		flow:    flow,
		queue:   queue,
		client:  client,
		cache:   cache,
		match:   match,
	}
}

// Request types for each tool

// CaptureRequest represents the arguments for page_capture.
type CaptureRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	HTML        string   `json:"html,omitempty"`
	Text        string   `json:"text,omitempty"`
	Images      []string `json:"images,omitempty"`
	Screenshot  string   `json:"screenshot,omitempty"`
	OnDuplicate string   `json:"on_duplicate,omitempty"`
}

// CaptureResponse is the page_capture result payload.
type CaptureResponse struct {
	BundleID       string `json:"bundle_id"`
	BundleName     string `json:"bundle_name"`
	PageIndex      int    `json:"page_index,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	DuplicateIndex int    `json:"duplicate_index,omitempty"`
	Replaced       bool   `json:"replaced,omitempty"`
	Skipped        bool   `json:"skipped,omitempty"`
}

// BundleCreateRequest represents the arguments for bundle_create.
type BundleCreateRequest struct {
	Name string `json:"name,omitempty"`
}

// BundleIDRequest identifies a bundle.
type BundleIDRequest struct {
	BundleID string `json:"bundle_id"`
}

// BundleExportRequest represents the arguments for bundle_export.
type BundleExportRequest struct {
	BundleID string `json:"bundle_id"`
	Path     string `json:"path,omitempty"`
	Format   string `json:"format,omitempty"`
}

// PageMoveRequest represents the arguments for page_move.
type PageMoveRequest struct {
	SourceBundleID string `json:"source_bundle_id"`
	PageIndex      int    `json:"page_index"`
	TargetBundleID string `json:"target_bundle_id"`
}

// PageRemoveRequest represents the arguments for page_remove.
type PageRemoveRequest struct {
	BundleID  string `json:"bundle_id"`
	PageIndex int    `json:"page_index"`
}

// LookupRequest represents the arguments for url_lookup.
type LookupRequest struct {
	URL string `json:"url"`
}

// EventUpdateRequest represents the arguments for event_update.
type EventUpdateRequest struct {
	EventID     int64     `json:"event_id"`
	TagIDs      *[]int64  `json:"tag_ids,omitempty"`
	EventTypeID *int64    `json:"event_type_id,omitempty"`
	Distances   *[]string `json:"distances,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

// UploadRetryRequest represents the arguments for upload_retry.
type UploadRetryRequest struct {
	ID string `json:"id"`
}

// UploadsFlushRequest represents the arguments for uploads_flush.
type UploadsFlushRequest struct {
	Discard bool `json:"discard,omitempty"`
}

// SettingsUpdateRequest represents the arguments for settings_update.
type SettingsUpdateRequest struct {
	AutoGroupByDomain      *bool   `json:"auto_group_by_domain,omitempty"`
	ScreenshotUploadTiming *string `json:"screenshot_upload_timing,omitempty"`
}

// Handler implementations

// HandleCapture handles the page_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URL == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	r := &extract.Result{
		URL:    input.URL,
		Title:  input.Title,
		HTML:   input.HTML,
		Text:   input.Text,
		Images: input.Images,
	}
	out, err := h.flow.Ingest(r, input.Screenshot)
	if err != nil {
		return errorResult(err), nil
	}

	if !out.Duplicate {
		return successResult(CaptureResponse{
			BundleID:   out.BundleID,
			BundleName: out.BundleName,
			PageIndex:  out.PageIndex,
		})
	}

	switch input.OnDuplicate {
	case "replace":
		if err := h.flow.Apply(out.BundleID, *out.Pending, out.DuplicateIndex); err != nil {
			return errorResult(err), nil
		}
		return successResult(CaptureResponse{
			BundleID:   out.BundleID,
			BundleName: out.BundleName,
			PageIndex:  out.DuplicateIndex,
			Replaced:   true,
		})
	case "skip":
		return successResult(CaptureResponse{
			BundleID:       out.BundleID,
			BundleName:     out.BundleName,
			Duplicate:      true,
			DuplicateIndex: out.DuplicateIndex,
			Skipped:        true,
		})
	default:
		return successResult(CaptureResponse{
			BundleID:       out.BundleID,
			BundleName:     out.BundleName,
			Duplicate:      true,
			DuplicateIndex: out.DuplicateIndex,
		})
	}
}

// HandleBundleList handles the bundle_list tool call.
func (h *Handlers) HandleBundleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{"bundles": h.mgr.Bundles()})
}

// HandleBundleCreate handles the bundle_create tool call.
func (h *Handlers) HandleBundleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	b, err := h.mgr.CreateBundle(input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(b)
}

// HandleBundleDelete handles the bundle_delete tool call.
func (h *Handlers) HandleBundleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.mgr.DeleteBundle(input.BundleID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": input.BundleID})
}

// HandleBundleClear handles the bundle_clear tool call.
func (h *Handlers) HandleBundleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mgr.ClearAll()
	return successResult(map[string]any{"cleared": true})
}

// HandleBundleExport handles the bundle_export tool call.
func (h *Handlers) HandleBundleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	b, err := h.mgr.Bundle(input.BundleID)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := export.Export(h.baseDir, b, export.Input{
		Path:   input.Path,
		Format: export.Format(input.Format),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandlePageMove handles the page_move tool call.
func (h *Handlers) HandlePageMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.mgr.MovePage(input.SourceBundleID, input.PageIndex, input.TargetBundleID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"moved": true})
}

// HandlePageRemove handles the page_remove tool call.
func (h *Handlers) HandlePageRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.mgr.RemovePage(input.BundleID, input.PageIndex); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"removed": true})
}

// HandleLookup handles the url_lookup tool call. The live service is
// preferred; a transport failure falls back to the synced local cache so
// lookups keep working offline.
func (h *Handlers) HandleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URL == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	var result *catalog.LookupResult
	if h.client != nil {
		result, err = h.client.Lookup(ctx, input.URL)
	}
	if result == nil {
		if h.cache == nil {
			if err != nil {
				return errorResult(err), nil
			}
			return errorResult(errors.NewTransport("no catalog service configured")), nil
		}
		result = h.cache.Match(input.URL)
	}

	if result.MatchType == catalog.MatchEvent || result.MatchType == catalog.MatchLinkDiscovery {
		h.match.SetActive(result.Event)
	} else {
		h.match.SetActive(nil)
	}
	return successResult(result)
}

// HandleSync handles the catalog_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.client == nil {
		return errorResult(errors.NewTransport("no catalog service configured")), nil
	}

	res, err := h.client.Sync(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	h.cache.Update(res)
	return successResult(map[string]any{
		"events":          len(res.Events),
		"organizer_links": len(res.OrganizerLinks),
	})
}

// HandleEventUpdate handles the event_update tool call.
func (h *Handlers) HandleEventUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.client == nil {
		return errorResult(errors.NewTransport("no catalog service configured")), nil
	}

	patch := catalog.EventPatch{
		TagIDs:      input.TagIDs,
		EventTypeID: input.EventTypeID,
		Distances:   input.Distances,
		Notes:       input.Notes,
	}
	if err := h.client.UpdateEvent(ctx, input.EventID, patch); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"updated": input.EventID})
}

// HandleUploadStatus handles the upload_status tool call.
func (h *Handlers) HandleUploadStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := h.queue.Items()
	type view struct {
		ID        string `json:"id"`
		EventID   int64  `json:"event_id"`
		EventName string `json:"event_name"`
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Progress  int    `json:"progress"`
		Error     string `json:"error,omitempty"`
	}
	views := make([]view, len(items))
	for i, item := range items {
		views[i] = view{
			ID:        item.ID,
			EventID:   item.EventID,
			EventName: item.EventName,
			Filename:  item.Filename,
			Status:    string(item.Status),
			Progress:  item.Progress,
			Error:     item.Error,
		}
	}
	return successResult(map[string]any{"uploads": views})
}

// HandleUploadRetry handles the upload_retry tool call.
func (h *Handlers) HandleUploadRetry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadRetryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.queue.Retry(input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"retrying": input.ID})
}

// HandleUploadsFlush handles the uploads_flush tool call.
func (h *Handlers) HandleUploadsFlush(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadsFlushRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Discard {
		h.flow.DiscardPendingUploads()
		return successResult(map[string]any{"discarded": true})
	}
	n := h.flow.FlushPendingUploads()
	return successResult(map[string]any{"enqueued": n})
}

// HandleSettingsGet handles the settings_get tool call.
func (h *Handlers) HandleSettingsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.mgr.Settings())
}

// HandleSettingsUpdate handles the settings_update tool call.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s := h.mgr.Settings()
	if input.AutoGroupByDomain != nil {
		s.AutoGroupByDomain = *input.AutoGroupByDomain
	}
	if input.ScreenshotUploadTiming != nil {
		timing := capture.ScreenshotUploadTiming(*input.ScreenshotUploadTiming)
		if timing != capture.UploadImmediate && timing != capture.UploadOnSave {
			return errorResult(errors.NewInvalidRequest("screenshot_upload_timing must be immediate or on_save")), nil
		}
		s.ScreenshotUploadTiming = timing
	}
	h.mgr.UpdateSettings(s)
	return successResult(s)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.ClipError); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
