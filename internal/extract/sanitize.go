package extract

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

// htmlPolicy strips scripts, event handlers, and other active content from
// captured HTML before it is stored. Captured pages are untrusted input.
var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML returns the captured HTML with active content removed.
func SanitizeHTML(html string) string {
	return htmlPolicy.Sanitize(html)
}

// DeriveText produces a plain-text rendition of the captured HTML, used
// when the content script supplies no text of its own. Conversion failures
// fall back to the empty string; a capture without text is still valid.
func DeriveText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

// Clean applies capture hygiene to an extraction result in place: HTML is
// sanitized and missing text is derived from the HTML.
func Clean(r *Result) {
	r.HTML = SanitizeHTML(r.HTML)
	if strings.TrimSpace(r.Text) == "" {
		r.Text = DeriveText(r.HTML)
	}
}
