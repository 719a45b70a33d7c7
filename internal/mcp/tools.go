package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var stringItems = map[string]any{"type": "string"}

var captureToolDef = mcp.NewTool("page_capture",
	mcp.WithDescription("Capture an extracted page into a bundle. Pages are grouped by domain when auto-grouping is on; a duplicate URL in the target bundle is reported as a decision, not an error."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Page URL")),
	mcp.WithString("title", mcp.Description("Page title")),
	mcp.WithString("html", mcp.Description("Extracted page HTML, sanitized on ingest")),
	mcp.WithString("text", mcp.Description("Extracted plain text; derived from HTML when omitted")),
	mcp.WithArray("images", mcp.Description("Image URLs found on the page"), mcp.Items(stringItems)),
	mcp.WithString("screenshot", mcp.Description("Base64-encoded screenshot")),
	mcp.WithString("on_duplicate", mcp.Description("What to do when the URL already exists in the target bundle: ask (default), replace, or skip"), mcp.Enum("ask", "replace", "skip")),
)

var bundleListToolDef = mcp.NewTool("bundle_list",
	mcp.WithDescription("List all bundles with their pages."),
)

var bundleCreateToolDef = mcp.NewTool("bundle_create",
	mcp.WithDescription("Create an empty bundle."),
	mcp.WithString("name", mcp.Description("Bundle name; defaults to a sequence number")),
)

var bundleDeleteToolDef = mcp.NewTool("bundle_delete",
	mcp.WithDescription("Delete a bundle and all its pages."),
	mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Bundle ID")),
)

var bundleClearToolDef = mcp.NewTool("bundle_clear",
	mcp.WithDescription("Delete every bundle."),
)

var bundleExportToolDef = mcp.NewTool("bundle_export",
	mcp.WithDescription("Export a bundle digest to a file."),
	mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Bundle ID")),
	mcp.WithString("path", mcp.Description("Destination path; defaults to the exports directory")),
	mcp.WithString("format", mcp.Description("markdown (default) or html"), mcp.Enum("markdown", "html")),
)

var pageMoveToolDef = mcp.NewTool("page_move",
	mcp.WithDescription("Move a page between bundles, or within its own bundle."),
	mcp.WithString("source_bundle_id", mcp.Required(), mcp.Description("Source bundle ID")),
	mcp.WithNumber("page_index", mcp.Required(), mcp.Description("Index of the page in the source bundle")),
	mcp.WithString("target_bundle_id", mcp.Required(), mcp.Description("Target bundle ID")),
)

var pageRemoveToolDef = mcp.NewTool("page_remove",
	mcp.WithDescription("Remove a page from a bundle."),
	mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Bundle ID")),
	mcp.WithNumber("page_index", mcp.Required(), mcp.Description("Index of the page to remove")),
)

var urlLookupToolDef = mcp.NewTool("url_lookup",
	mcp.WithDescription("Look up a URL against the event catalog. Falls back to the synced local cache when the service is unreachable."),
	mcp.WithString("url", mcp.Required(), mcp.Description("URL to look up")),
)

var catalogSyncToolDef = mcp.NewTool("catalog_sync",
	mcp.WithDescription("Pull the full event catalog into the local match cache."),
)

var eventUpdateToolDef = mcp.NewTool("event_update",
	mcp.WithDescription("Apply a partial update to a catalog event. Omitted fields are left unchanged."),
	mcp.WithNumber("event_id", mcp.Required(), mcp.Description("Catalog event ID")),
	mcp.WithArray("tag_ids", mcp.Description("Replacement tag ID list"), mcp.Items(map[string]any{"type": "integer"})),
	mcp.WithNumber("event_type_id", mcp.Description("Replacement event type ID")),
	mcp.WithArray("distances", mcp.Description("Replacement distance list"), mcp.Items(stringItems)),
	mcp.WithString("notes", mcp.Description("Replacement notes text")),
)

var uploadStatusToolDef = mcp.NewTool("upload_status",
	mcp.WithDescription("List upload queue items with status and progress."),
)

var uploadRetryToolDef = mcp.NewTool("upload_retry",
	mcp.WithDescription("Retry a failed upload."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Upload item ID")),
)

var uploadsFlushToolDef = mcp.NewTool("uploads_flush",
	mcp.WithDescription("Send screenshots held back by the on_save upload policy, or discard them."),
	mcp.WithBoolean("discard", mcp.Description("Discard pending screenshots instead of sending them")),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Read current settings."),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Update settings. Omitted fields are left unchanged."),
	mcp.WithBoolean("auto_group_by_domain", mcp.Description("Group new captures into per-domain bundles")),
	mcp.WithString("screenshot_upload_timing", mcp.Description("When screenshots are uploaded"), mcp.Enum("immediate", "on_save")),
)
