// Package export renders capture bundles into shareable documents.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/urlx"
)

// Digest renders a bundle as a markdown document. Edited titles and URLs
// take precedence over captured ones, links go out with the www prefix the
// destination host requires, and each page's export toggles decide what
// content it contributes.
func Digest(b *capture.Bundle) string {
	var sb strings.Builder

	name := b.Name
	if name == "" {
		name = "Untitled bundle"
	}
	sb.WriteString("# " + name + "\n\n")
	fmt.Fprintf(&sb, "%d page(s), captured %s\n", len(b.Pages), formatTime(b.CreatedAt))

	for i := range b.Pages {
		sb.WriteString("\n---\n\n")
		writePage(&sb, &b.Pages[i])
	}

	return sb.String()
}

func writePage(sb *strings.Builder, p *capture.Capture) {
	title := p.EffectiveTitle()
	if title == "" {
		title = p.EffectiveURL()
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	fmt.Fprintf(sb, "<%s>\n", urlx.EnsureWWW(p.EffectiveURL()))
	if p.CapturedAt != 0 {
		fmt.Fprintf(sb, "\nCaptured %s\n", formatTime(p.CapturedAt))
	}

	if p.Text != "" {
		sb.WriteString("\n" + strings.TrimSpace(p.Text) + "\n")
	}

	if p.IncludeImages {
		for _, img := range p.Images {
			if p.IsImageSelected(img) {
				fmt.Fprintf(sb, "\n![image](%s)\n", img)
			}
		}
	}

	if p.IncludeScreenshot && p.Screenshot != "" {
		sb.WriteString("\n(screenshot attached)\n")
	}

	if p.IncludeHTML && p.HTML != "" {
		sb.WriteString("\n```html\n" + strings.TrimSpace(p.HTML) + "\n```\n")
	}
}

// HTML renders the bundle digest to an HTML fragment.
func HTML(b *capture.Bundle) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Digest(b)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
