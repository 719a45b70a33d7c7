package capture

import (
	"encoding/json"
	"strings"
)

// ScreenshotUploadTiming controls when a captured screenshot is sent to the
// remote catalog.
type ScreenshotUploadTiming string

const (
	UploadImmediate ScreenshotUploadTiming = "immediate"
	UploadOnSave    ScreenshotUploadTiming = "on_save"
)

// StandardDistances are the built-in distance presets, in display order.
var StandardDistances = []string{"5k", "10k", "half", "full"}

// Settings holds the operator-configurable behavior persisted alongside the
// bundle collection. API credentials are opaque to the model; they are only
// required for network calls.
type Settings struct {
	AutoGroupByDomain      bool                   `json:"auto_group_by_domain"`
	ScreenshotUploadTiming ScreenshotUploadTiming `json:"screenshot_upload_timing"`
	APIBaseURL             string                 `json:"api_base_url,omitempty"`
	APIToken               string                 `json:"api_token,omitempty"`
	DistancePresets        DistancePresets        `json:"distance_presets"`
}

// DistancePresets is the current representation of the distance preset
// field: an enable map for the standard presets plus a free-form custom
// list. An older release stored this as a signed comma-separated string;
// see UnmarshalJSON.
type DistancePresets struct {
	Enabled map[string]bool `json:"enabled"`
	Custom  []string        `json:"custom,omitempty"`
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		AutoGroupByDomain:      true,
		ScreenshotUploadTiming: UploadImmediate,
		DistancePresets:        DefaultDistancePresets(),
	}
}

// DefaultDistancePresets enables every standard preset and no customs.
func DefaultDistancePresets() DistancePresets {
	enabled := make(map[string]bool, len(StandardDistances))
	for _, d := range StandardDistances {
		enabled[d] = true
	}
	return DistancePresets{Enabled: enabled}
}

// ParseLegacyDistancePresets converts the old string representation
// ("5k,-10k,13.1mi") into the structured form. A leading '-' marks a
// disabled entry. Tokens outside the standard preset list become custom
// entries; disabled customs are discarded since the custom list has no
// per-entry toggle.
func ParseLegacyDistancePresets(s string) DistancePresets {
	standard := make(map[string]bool, len(StandardDistances))
	for _, d := range StandardDistances {
		standard[d] = true
	}

	out := DistancePresets{Enabled: make(map[string]bool, len(StandardDistances))}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		enabled := !strings.HasPrefix(tok, "-")
		tok = strings.ToLower(strings.TrimPrefix(tok, "-"))
		if standard[tok] {
			out.Enabled[tok] = enabled
			continue
		}
		if enabled {
			out.Custom = append(out.Custom, tok)
		}
	}

	// Standard presets never mentioned in the legacy string stay enabled,
	// matching the behavior before the field existed.
	for _, d := range StandardDistances {
		if _, ok := out.Enabled[d]; !ok {
			out.Enabled[d] = true
		}
	}
	return out
}

// List returns the enabled standard presets followed by the customs, the
// order used for the catalog's distance field.
func (p DistancePresets) List() []string {
	out := make([]string, 0, len(StandardDistances)+len(p.Custom))
	for _, d := range StandardDistances {
		if p.Enabled[d] {
			out = append(out, d)
		}
	}
	out = append(out, p.Custom...)
	return out
}

// UnmarshalJSON accepts both the current object shape and the legacy signed
// comma-separated string, upgrading the latter in place. The shape check
// makes the migration idempotent: already-current data never re-migrates.
func (p *DistancePresets) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var legacy string
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		*p = ParseLegacyDistancePresets(legacy)
		return nil
	}

	type alias DistancePresets
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = DistancePresets(aux)
	return nil
}
