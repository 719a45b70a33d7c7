package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the catalog service root, e.g. "https://clips.example.com".
	// Empty disables sync, lookup, and upload operations.
	APIBaseURL string `json:"api_base_url,omitempty"`

	// APIToken is the bearer token for catalog requests.
	APIToken string `json:"api_token,omitempty"`

	// RequestTimeoutSecs bounds sync, lookup, and event update requests.
	RequestTimeoutSecs int `json:"request_timeout_secs,omitempty"`

	// UploadTimeoutSecs bounds a single screenshot upload. Uploads that
	// exceed it fail and become retryable.
	UploadTimeoutSecs int `json:"upload_timeout_secs,omitempty"`

	// ThumbnailMaxDim is the longest edge, in pixels, of queue thumbnails.
	ThumbnailMaxDim int `json:"thumbnail_max_dim,omitempty"`

	// ThumbnailQuality is the JPEG quality (1-100) for queue thumbnails.
	ThumbnailQuality int `json:"thumbnail_quality,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// All tools are enabled by default. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeoutSecs: 15,
		UploadTimeoutSecs:  60,
		ThumbnailMaxDim:    200,
		ThumbnailQuality:   70,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.evclip.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIBaseURL = overlay.APIBaseURL
	if result.APIBaseURL == "" {
		result.APIBaseURL = base.APIBaseURL
	}

	result.APIToken = overlay.APIToken
	if result.APIToken == "" {
		result.APIToken = base.APIToken
	}

	result.RequestTimeoutSecs = overlay.RequestTimeoutSecs
	if result.RequestTimeoutSecs == 0 {
		result.RequestTimeoutSecs = base.RequestTimeoutSecs
	}

	result.UploadTimeoutSecs = overlay.UploadTimeoutSecs
	if result.UploadTimeoutSecs == 0 {
		result.UploadTimeoutSecs = base.UploadTimeoutSecs
	}

	result.ThumbnailMaxDim = overlay.ThumbnailMaxDim
	if result.ThumbnailMaxDim == 0 {
		result.ThumbnailMaxDim = base.ThumbnailMaxDim
	}

	result.ThumbnailQuality = overlay.ThumbnailQuality
	if result.ThumbnailQuality == 0 {
		result.ThumbnailQuality = base.ThumbnailQuality
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
