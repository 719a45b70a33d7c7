package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/catalog"
	"github.com/clipworks/evclip/internal/errors"
	"github.com/clipworks/evclip/internal/export"
	"github.com/clipworks/evclip/internal/extract"
	"github.com/clipworks/evclip/internal/uploader"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "evclip",
		Usage:   "Event website capture bundles",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(env),
			bundlesCmd(env),
			createCmd(env),
			deleteCmd(env),
			clearCmd(env),
			moveCmd(env),
			removeCmd(env),
			exportCmd(env),
			lookupCmd(env),
			syncCmd(env),
			eventUpdateCmd(env),
			settingsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture a page into a bundle (reads the extraction payload from stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-screenshot", Usage: "Skip the screenshot even if the payload carries one"},
			&cli.StringFlag{Name: "on-duplicate", Value: "ask", Usage: "When the URL already exists in the target bundle: ask|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("extraction payload must be piped via stdin"))
			}

			out, err := env.flow.CapturePage(c.Context, !c.Bool("no-screenshot"))
			if err != nil {
				return outputError(err)
			}

			if out.Duplicate {
				switch c.String("on-duplicate") {
				case "replace":
					if err := env.flow.Apply(out.BundleID, *out.Pending, out.DuplicateIndex); err != nil {
						return outputError(err)
					}
					out.PageIndex = out.DuplicateIndex
				case "skip":
				case "ask":
					// Decision left to the caller; report and change nothing.
				default:
					return outputError(errors.NewInvalidRequest("on-duplicate must be ask, replace, or skip"))
				}
			}

			waitForUploads(env.queue, time.Duration(env.cfg.UploadTimeoutSecs+5)*time.Second)

			return outputJSON(map[string]any{
				"bundle_id":   out.BundleID,
				"bundle_name": out.BundleName,
				"page_index":  out.PageIndex,
				"duplicate":   out.Duplicate,
			})
		},
	}
}

// bundlesCmd creates the bundles command.
func bundlesCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "bundles",
		Usage: "List all bundles with their pages",
		Action: func(c *cli.Context) error {
			return outputJSON(map[string]any{"bundles": env.mgr.Bundles()})
		},
	}
}

// createCmd creates the create command.
func createCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an empty bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Bundle name (defaults to a sequence number)"},
		},
		Action: func(c *cli.Context) error {
			b, err := env.mgr.CreateBundle(c.String("name"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(b)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a bundle and all its pages",
		ArgsUsage: "<bundle-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("bundle id is required"))
			}
			id := c.Args().First()
			if err := env.mgr.DeleteBundle(id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": id})
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every bundle",
		Action: func(c *cli.Context) error {
			env.mgr.ClearAll()
			return outputJSON(map[string]any{"cleared": true})
		},
	}
}

// moveCmd creates the move command.
func moveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "Move a page between bundles",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "Source bundle ID"},
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Required: true, Usage: "Page index in the source bundle"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "Target bundle ID"},
		},
		Action: func(c *cli.Context) error {
			if err := env.mgr.MovePage(c.String("from"), c.Int("index"), c.String("to")); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"moved": true})
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Remove a page from a bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bundle", Aliases: []string{"b"}, Required: true, Usage: "Bundle ID"},
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Required: true, Usage: "Page index"},
		},
		Action: func(c *cli.Context) error {
			if err := env.mgr.RemovePage(c.String("bundle"), c.Int("index")); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"removed": true})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a bundle digest to a file",
		ArgsUsage: "<bundle-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Destination path (default: <base>/exports/<bundle>-<timestamp>)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "Export format: markdown|html"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("bundle id is required"))
			}
			b, err := env.mgr.Bundle(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			out, err := export.Export(env.baseDir, b, export.Input{
				Path:   c.String("path"),
				Format: export.Format(c.String("format")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// lookupCmd creates the lookup command.
func lookupCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up a URL against the event catalog",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("url is required"))
			}
			if env.client == nil {
				return outputError(errors.NewTransport("no catalog service configured"))
			}

			result, err := env.client.Lookup(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull the full event catalog",
		Action: func(c *cli.Context) error {
			if env.client == nil {
				return outputError(errors.NewTransport("no catalog service configured"))
			}

			res, err := env.client.Sync(c.Context)
			if err != nil {
				return outputError(err)
			}
			env.cache.Update(res)
			return outputJSON(map[string]any{
				"events":          len(res.Events),
				"organizer_links": len(res.OrganizerLinks),
			})
		},
	}
}

// eventUpdateCmd creates the event-update command.
func eventUpdateCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "event-update",
		Usage: "Apply a partial update to a catalog event",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Required: true, Usage: "Catalog event ID"},
			&cli.StringFlag{Name: "notes", Usage: "Replacement notes text"},
			&cli.StringFlag{Name: "tags", Usage: "Replacement comma-separated tag IDs"},
			&cli.Int64Flag{Name: "type", Usage: "Replacement event type ID"},
			&cli.StringFlag{Name: "distances", Usage: "Replacement comma-separated distances"},
		},
		Action: func(c *cli.Context) error {
			if env.client == nil {
				return outputError(errors.NewTransport("no catalog service configured"))
			}

			patch := catalog.EventPatch{}
			if c.IsSet("notes") {
				notes := c.String("notes")
				patch.Notes = &notes
			}
			if c.IsSet("tags") {
				ids, err := parseInt64List(c.String("tags"))
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				patch.TagIDs = &ids
			}
			if c.IsSet("type") {
				typeID := c.Int64("type")
				patch.EventTypeID = &typeID
			}
			if c.IsSet("distances") {
				distances := parseList(c.String("distances"))
				patch.Distances = &distances
			}

			if err := env.client.UpdateEvent(c.Context, c.Int64("id"), patch); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"updated": c.Int64("id")})
		},
	}
}

// settingsCmd creates the settings command.
func settingsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change settings",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print current settings",
				Action: func(c *cli.Context) error {
					return outputJSON(env.mgr.Settings())
				},
			},
			{
				Name:  "set",
				Usage: "Change settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "auto-group", Usage: "Group captures into per-domain bundles: true|false"},
					&cli.StringFlag{Name: "upload-timing", Usage: "Screenshot upload timing: immediate|on_save"},
					&cli.StringFlag{Name: "api-url", Usage: "Catalog service base URL"},
					&cli.StringFlag{Name: "api-token", Usage: "Catalog service bearer token"},
				},
				Action: func(c *cli.Context) error {
					s := env.mgr.Settings()

					if c.IsSet("auto-group") {
						v, err := strconv.ParseBool(c.String("auto-group"))
						if err != nil {
							return outputError(errors.NewInvalidRequest("auto-group must be true or false"))
						}
						s.AutoGroupByDomain = v
					}
					if c.IsSet("upload-timing") {
						timing := capture.ScreenshotUploadTiming(c.String("upload-timing"))
						if timing != capture.UploadImmediate && timing != capture.UploadOnSave {
							return outputError(errors.NewInvalidRequest("upload-timing must be immediate or on_save"))
						}
						s.ScreenshotUploadTiming = timing
					}
					if c.IsSet("api-url") {
						s.APIBaseURL = c.String("api-url")
					}
					if c.IsSet("api-token") {
						s.APIToken = c.String("api-token")
					}

					env.mgr.UpdateSettings(s)
					return outputJSON(s)
				},
			},
		},
	}
}

// stdinSource reads one extraction payload from stdin and serves it as both
// the page extractor and the screenshot capturer. The payload is the JSON
// the companion extension emits: an extraction result plus an optional
// base64 screenshot.
type stdinSource struct {
	once sync.Once
	res  extract.Result
	shot string
	err  error
}

func (s *stdinSource) load() {
	s.once.Do(func() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			s.err = err
			return
		}
		var p struct {
			extract.Result
			Screenshot string `json:"screenshot,omitempty"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			s.err = fmt.Errorf("malformed extraction payload: %w", err)
			return
		}
		s.res = p.Result
		s.shot = p.Screenshot
	})
}

func (s *stdinSource) ExtractPage(ctx context.Context) (*extract.Result, error) {
	s.load()
	if s.err != nil {
		return nil, s.err
	}
	r := s.res
	return &r, nil
}

func (s *stdinSource) CaptureScreenshot(ctx context.Context) (string, error) {
	s.load()
	return s.shot, s.err
}

// unconfiguredTransport backs the upload queue when no catalog service is
// configured. Enqueued uploads fail immediately with a clear reason.
type unconfiguredTransport struct{}

func (unconfiguredTransport) UploadMedia(ctx context.Context, eventID int64, filename, imageData string, progress func(sent, total int64)) (*catalog.MediaAsset, error) {
	return nil, errors.NewTransport("no catalog service configured")
}

// waitForUploads blocks until no queue item is still uploading, so a CLI
// process does not exit under an in-flight transfer.
func waitForUploads(q *uploader.Queue, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		busy := false
		for _, item := range q.Items() {
			if item.Status == uploader.StatusUploading {
				busy = true
				break
			}
		}
		if !busy {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.ClipError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// parseList splits a comma-separated string, trimming blanks.
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseInt64List parses a comma-separated list of integer IDs.
func parseInt64List(s string) ([]int64, error) {
	parts := parseList(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
