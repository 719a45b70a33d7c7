package store

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/idgen"
	"github.com/clipworks/evclip/internal/urlx"
)

// migrateLegacyPages upgrades the pre-bundle flat page list: pages are
// grouped by the domain of each page's URL in first-appearance order, each
// bundle with a fresh id and creation timestamp. A domain with more pages
// than a bundle may hold spills into successive numbered bundles, and
// migration stops creating bundles at the bundle cap (overflow pages are
// dropped with a log line) so the migrated state never violates the caps.
// The legacy key is deleted only after the migrated state is written, so a
// failed write retries the migration on the next load.
func (s *Store) migrateLegacyPages(raw string) (*capture.State, error) {
	var pages []capture.Capture
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		// Malformed legacy data degrades to an empty bundle set rather
		// than making the whole store unusable.
		log.Printf("store: legacy page data malformed, starting empty: %v", err)
		pages = nil
	}

	now := time.Now().Unix()
	var bundles []*capture.Bundle
	// open tracks the current bundle per domain; seq numbers a domain's
	// spill bundles.
	open := make(map[string]*capture.Bundle)
	seq := make(map[string]int)
	dropped := 0
	for _, page := range pages {
		domain := urlx.Host(page.URL)
		if domain == "" {
			domain = "unknown"
		}
		b := open[domain]
		if b == nil || len(b.Pages) >= capture.MaxBundlePages {
			if len(bundles) >= capture.MaxBundles {
				dropped++
				continue
			}
			seq[domain]++
			name := domain
			if seq[domain] > 1 {
				name = fmt.Sprintf("%s %d", domain, seq[domain])
			}
			b = &capture.Bundle{
				ID:        idgen.New(),
				Name:      name,
				CreatedAt: now,
				Expanded:  false,
			}
			open[domain] = b
			bundles = append(bundles, b)
		}
		b.Pages = append(b.Pages, page)
	}
	if dropped > 0 {
		log.Printf("store: legacy migration dropped %d pages over the bundle cap", dropped)
	}

	state := &capture.State{
		Bundles:  bundles,
		Settings: capture.DefaultSettings(),
	}

	if err := s.save(state); err != nil {
		return nil, err
	}
	if err := s.delete(LegacyPagesKey); err != nil {
		return nil, err
	}
	return state, nil
}
