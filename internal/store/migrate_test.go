package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/clipworks/evclip/internal/capture"
)

const legacyPagesJSON = `[
	{"url": "https://www.example.com/races/berlin", "title": "Berlin"},
	{"url": "https://example.com/races/hamburg", "title": "Hamburg"},
	{"url": "https://other.org/trail", "title": "Trail"}
]`

func TestMigrateLegacyPages(t *testing.T) {
	s := openTestStore(t)

	if err := s.put(LegacyPagesKey, legacyPagesJSON); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(state.Bundles) != 2 {
		t.Fatalf("bundles = %d, want 2 (one per domain)", len(state.Bundles))
	}

	// First-appearance order of domains.
	if state.Bundles[0].Name != "example.com" {
		t.Errorf("bundle[0].Name = %q, want example.com", state.Bundles[0].Name)
	}
	if state.Bundles[1].Name != "other.org" {
		t.Errorf("bundle[1].Name = %q, want other.org", state.Bundles[1].Name)
	}
	if len(state.Bundles[0].Pages) != 2 {
		t.Errorf("example.com pages = %d, want 2", len(state.Bundles[0].Pages))
	}
	for _, b := range state.Bundles {
		if b.ID == "" {
			t.Error("migrated bundle missing fresh id")
		}
		if b.CreatedAt == 0 {
			t.Error("migrated bundle missing creation timestamp")
		}
		if b.Expanded {
			t.Error("migrated bundles start collapsed")
		}
	}

	// The legacy key is deleted after a successful write.
	if _, ok, err := s.get(LegacyPagesKey); err != nil || ok {
		t.Errorf("legacy key should be gone (ok=%v, err=%v)", ok, err)
	}
}

func TestMigrateLegacyPages_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.put(LegacyPagesKey, legacyPagesJSON); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	first, err := s.Load()
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}

	// Second load sees current-format data; the legacy key is absent so
	// migration is a no-op.
	second, err := s.Load()
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if len(first.Bundles) != len(second.Bundles) {
		t.Fatalf("bundle count changed across loads: %d vs %d", len(first.Bundles), len(second.Bundles))
	}
	for i := range first.Bundles {
		if first.Bundles[i].ID != second.Bundles[i].ID {
			t.Errorf("bundle %d id changed: %q vs %q", i, first.Bundles[i].ID, second.Bundles[i].ID)
		}
	}
}

func TestMigrateLegacyPages_Malformed(t *testing.T) {
	s := openTestStore(t)

	if err := s.put(LegacyPagesKey, `{"not": "a list"`); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load should not fail on malformed legacy data: %v", err)
	}
	if len(state.Bundles) != 0 {
		t.Errorf("bundles = %d, want 0 for malformed legacy data", len(state.Bundles))
	}
}

func TestMigrateLegacySettings_DistanceString(t *testing.T) {
	s := openTestStore(t)

	// A stored state whose settings still carry the string-shaped
	// distance_presets field migrates transparently on load.
	stateJSON := `{
		"bundles": [],
		"settings": {
			"auto_group_by_domain": true,
			"screenshot_upload_timing": "immediate",
			"distance_presets": "5k,-10k,stairclimb"
		}
	}`
	if err := s.put(StateKey, stateJSON); err != nil {
		t.Fatalf("seeding state failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p := state.Settings.DistancePresets
	if !p.Enabled["5k"] || p.Enabled["10k"] {
		t.Errorf("distance presets not migrated: %+v", p)
	}
	if len(p.Custom) != 1 || p.Custom[0] != "stairclimb" {
		t.Errorf("custom = %v, want [stairclimb]", p.Custom)
	}
	if !state.Settings.AutoGroupByDomain {
		t.Error("unrelated settings must survive the migration")
	}
}

func TestMigrateLegacyPages_EffectiveURLNotUsedForGrouping(t *testing.T) {
	s := openTestStore(t)

	// Grouping uses each page's extracted URL, not the edited override.
	legacy := `[{"url": "https://example.com/a", "edited_url": "https://elsewhere.net/a", "title": "A"}]`
	if err := s.put(LegacyPagesKey, legacy); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(state.Bundles) != 1 || state.Bundles[0].Name != "example.com" {
		t.Errorf("grouping should use the page URL domain: %+v", state.Bundles)
	}
}

func TestMigrateLegacyPages_SplitsOverfullDomain(t *testing.T) {
	s := openTestStore(t)

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 25; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"url": "https://example.com/p%d", "title": "P%d"}`, i, i)
	}
	sb.WriteString("]")
	if err := s.put(LegacyPagesKey, sb.String()); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(state.Bundles) != 2 {
		t.Fatalf("bundles = %d, want 2 (20-page spill)", len(state.Bundles))
	}
	for _, b := range state.Bundles {
		if len(b.Pages) > capture.MaxBundlePages {
			t.Errorf("bundle %q holds %d pages, cap is %d", b.Name, len(b.Pages), capture.MaxBundlePages)
		}
	}
	if state.Bundles[0].Name != "example.com" || state.Bundles[1].Name != "example.com 2" {
		t.Errorf("spill naming: %q, %q", state.Bundles[0].Name, state.Bundles[1].Name)
	}
	if got := len(state.Bundles[0].Pages) + len(state.Bundles[1].Pages); got != 25 {
		t.Errorf("pages after split = %d, want 25", got)
	}
	// Capture order survives the split.
	if state.Bundles[1].Pages[0].Title != "P20" {
		t.Errorf("first spilled page = %q, want P20", state.Bundles[1].Pages[0].Title)
	}
}

func TestMigrateLegacyPages_StopsAtBundleCap(t *testing.T) {
	s := openTestStore(t)

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < capture.MaxBundles+5; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"url": "https://site%d.example/p", "title": "S%d"}`, i, i)
	}
	sb.WriteString("]")
	if err := s.put(LegacyPagesKey, sb.String()); err != nil {
		t.Fatalf("seeding legacy key failed: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(state.Bundles) != capture.MaxBundles {
		t.Errorf("bundles = %d, want the cap %d", len(state.Bundles), capture.MaxBundles)
	}
}
