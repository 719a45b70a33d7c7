package export

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/errors"
)

// Format selects the export rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Input contains parameters for the Export operation.
type Input struct {
	Path   string // optional, default: <baseDir>/exports/<bundle>-<timestamp>.<ext>
	Format Format // optional, default markdown
}

// Output contains the result of the Export operation.
type Output struct {
	Path       string `json:"path"`
	Pages      int    `json:"pages"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes a bundle digest to disk. The file is written to a temp
// path and renamed into place so a failed export never clobbers an
// existing file.
func Export(baseDir string, b *capture.Bundle, input Input) (*Output, error) {
	now := time.Now()

	format := input.Format
	if format == "" {
		format = FormatMarkdown
	}

	var content string
	var ext string
	switch format {
	case FormatMarkdown:
		content = Digest(b)
		ext = "md"
	case FormatHTML:
		html, err := HTML(b)
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("render bundle: %w", err))
		}
		content = html
		ext = "html"
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", input.Format))
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(baseDir, b.Name, ext, now)
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Temp file first, then atomic rename to preserve existing file on failure.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	if err := os.WriteFile(tempPath, []byte(content), 0600); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to write export file: %w", err))
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		os.Remove(tempPath)
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	return &Output{
		Path:       exportPath,
		Pages:      len(b.Pages),
		ExportedAt: now.Unix(),
	}, nil
}

// defaultExportPath generates the default export path.
// Format: <baseDir>/exports/<bundle>-<timestamp>.<ext>
func defaultExportPath(baseDir, bundleName, ext string, now time.Time) string {
	timestamp := now.Format("2006-01-02T150405")
	name := sanitizeForFilename(bundleName)
	if name == "" {
		name = "bundle"
	}
	return filepath.Join(baseDir, "exports", fmt.Sprintf("%s-%s.%s", name, timestamp, ext))
}

// sanitizeForFilename lowercases a bundle name and replaces anything that
// is not alphanumeric with a dash, collapsing runs.
func sanitizeForFilename(name string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "-")
}
