// Package config holds all screenpilot tuning parameters.
// Every threshold the decision core relies on lives here as a named,
// serializable field rather than an embedded literal, so the scoring
// weights and guard tolerances are independently testable and tunable.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for all screenpilot subsystems.
type Config struct {
	// Line reconstruction tolerances
	Reconstruct ReconstructConfig `yaml:"reconstruct" json:"reconstruct"`

	// Treasure map fusion thresholds
	Fusion FusionConfig `yaml:"fusion" json:"fusion"`

	// Target resolver scoring weights
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`

	// Reliability classifier check parameters
	Checks ChecksConfig `yaml:"checks" json:"checks"`

	// Conversion quality gating
	Convert ConvertConfig `yaml:"convert" json:"convert"`

	// Duplicate-click suppression tolerances
	Guard GuardConfig `yaml:"guard" json:"guard"`

	// Replay loop pacing
	Replay ReplayConfig `yaml:"replay" json:"replay"`

	// Persistence
	Store StoreConfig `yaml:"store" json:"store"`

	// Session ingest watcher
	Watch WatchConfig `yaml:"watch" json:"watch"`
}

// ReconstructConfig tunes OCR line reconstruction.
type ReconstructConfig struct {
	// LineTolerance is the max vertical difference (normalized units)
	// for two detections to share a line.
	LineTolerance float64 `yaml:"line_tolerance" json:"line_tolerance"`

	// GapTolerance is the horizontal gap (normalized units) above which
	// a separating space is inserted between adjacent detections.
	GapTolerance float64 `yaml:"gap_tolerance" json:"gap_tolerance"`

	// GlyphWidth is the per-character width estimate (normalized units)
	// used to advance the cursor past a detection.
	GlyphWidth float64 `yaml:"glyph_width" json:"glyph_width"`
}

// FusionConfig tunes cross-source deduplication.
type FusionConfig struct {
	// IoUThreshold above which a text/component pair is merged.
	IoUThreshold float64 `yaml:"iou_threshold" json:"iou_threshold"`

	// CenterDistancePx merges a pair whose pixel-space centers are
	// closer than this even when IoU is below the threshold.
	CenterDistancePx float64 `yaml:"center_distance_px" json:"center_distance_px"`
}

// ScoringConfig holds the resolver's weighted composite scoring model.
// Weights follow the 40/20/20/15/5 split across match quality, size,
// position, UI pattern, and source quality.
type ScoringConfig struct {
	// SimilarityCutoff below which candidates are discarded.
	SimilarityCutoff float64 `yaml:"similarity_cutoff" json:"similarity_cutoff"`

	// Match quality: similarity is scaled by this weight.
	MatchWeight float64 `yaml:"match_weight" json:"match_weight"`

	// Size preference: normalized area is scaled by AreaScale then
	// capped at SizeCap; the capped value is scaled by SizeWeight.
	AreaScale  float64 `yaml:"area_scale" json:"area_scale"`
	SizeCap    float64 `yaml:"size_cap" json:"size_cap"`
	SizeWeight float64 `yaml:"size_weight" json:"size_weight"`

	// Position preference bands.
	CenterBonus    float64 `yaml:"center_bonus" json:"center_bonus"`
	MidBonus       float64 `yaml:"mid_bonus" json:"mid_bonus"`
	EdgeBonus      float64 `yaml:"edge_bonus" json:"edge_bonus"`
	LowerHalfBonus float64 `yaml:"lower_half_bonus" json:"lower_half_bonus"`

	// UI pattern recognition.
	UIWeight            float64 `yaml:"ui_weight" json:"ui_weight"`
	InteractiveBonus    float64 `yaml:"interactive_bonus" json:"interactive_bonus"`
	NonClickablePenalty float64 `yaml:"non_clickable_penalty" json:"non_clickable_penalty"`
	SearchPenalty       float64 `yaml:"search_penalty" json:"search_penalty"`

	// Source quality bonuses.
	SourceTextBonus      float64 `yaml:"source_text_bonus" json:"source_text_bonus"`
	SourceComponentBonus float64 `yaml:"source_component_bonus" json:"source_component_bonus"`
	SourceOverlapBonus   float64 `yaml:"source_overlap_bonus" json:"source_overlap_bonus"`
}

// ScreenSize is a reference resolution used by the robustness check.
type ScreenSize struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// ChecksConfig tunes the per-action reliability checks.
type ChecksConfig struct {
	// Pass thresholds per action family.
	ClickThreshold    int `yaml:"click_threshold" json:"click_threshold"`       // of 5
	KeyboardThreshold int `yaml:"keyboard_threshold" json:"keyboard_threshold"` // of 3
	OtherThreshold    int `yaml:"other_threshold" json:"other_threshold"`       // of 2

	// Compatibility check bounds.
	MinWindowAlpha float64 `yaml:"min_window_alpha" json:"min_window_alpha"`
	MinWindowSize  int     `yaml:"min_window_size" json:"min_window_size"`

	// Resolution robustness: position must land inside the safe margin
	// on at least PassRate of the reference sizes.
	ReferenceSizes []ScreenSize `yaml:"reference_sizes" json:"reference_sizes"`
	EdgeMarginPx   float64      `yaml:"edge_margin_px" json:"edge_margin_px"`
	PassRate       float64      `yaml:"pass_rate" json:"pass_rate"`

	// Targeting redundancy tiers: independent re-location strategies
	// needed for high / medium confidence targeting.
	HighRedundancy   int `yaml:"high_redundancy" json:"high_redundancy"`
	MediumRedundancy int `yaml:"medium_redundancy" json:"medium_redundancy"`

	// MinDetectedLen is the minimum OCR text length accepted as a
	// trustworthy target name.
	MinDetectedLen int `yaml:"min_detected_len" json:"min_detected_len"`

	// MaxTargetLen caps cleaned target names.
	MaxTargetLen int `yaml:"max_target_len" json:"max_target_len"`
}

// ConvertConfig gates automation saving on overall session quality.
type ConvertConfig struct {
	// QualityThreshold is the minimum reliable/total rate required to
	// save a converted automation.
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`
}

// GuardConfig tunes duplicate-click suppression.
type GuardConfig struct {
	// SamePixelTolerance: at or under this distance the click is always
	// suppressed (same UI element).
	SamePixelTolerance float64 `yaml:"same_pixel_tolerance" json:"same_pixel_tolerance"`

	// ClickTolerance: under this distance the click is suppressed only
	// when the target name matches the previous one.
	ClickTolerance float64 `yaml:"click_tolerance" json:"click_tolerance"`
}

// ReplayConfig paces the replay pulse loop.
type ReplayConfig struct {
	// PulseInterval between steps after the first.
	PulseInterval time.Duration `yaml:"pulse_interval" json:"pulse_interval"`

	// FirstPulseDelay lets the screen stabilize before the first step.
	FirstPulseDelay time.Duration `yaml:"first_pulse_delay" json:"first_pulse_delay"`

	// MaxPulsesPerItem bounds capture retries so a failing capture
	// pipeline cannot spin an item forever.
	MaxPulsesPerItem int `yaml:"max_pulses_per_item" json:"max_pulses_per_item"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// WatchConfig tunes the session ingest watcher.
type WatchConfig struct {
	// SessionsDir is the directory watched for new session logs.
	SessionsDir string `yaml:"sessions_dir" json:"sessions_dir"`

	// Debounce coalesces rapid writes to the same file.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// Default returns the tuned defaults for every subsystem.
func Default() *Config {
	return &Config{
		Reconstruct: ReconstructConfig{
			LineTolerance: 0.015,
			GapTolerance:  0.02,
			GlyphWidth:    0.01,
		},
		Fusion: FusionConfig{
			IoUThreshold:     0.05,
			CenterDistancePx: 30,
		},
		Scoring: ScoringConfig{
			SimilarityCutoff:     0.5,
			MatchWeight:          40,
			AreaScale:            100,
			SizeCap:              10,
			SizeWeight:           2,
			CenterBonus:          8,
			MidBonus:             5,
			EdgeBonus:            2,
			LowerHalfBonus:       2,
			UIWeight:             1.5,
			InteractiveBonus:     8,
			NonClickablePenalty:  5,
			SearchPenalty:        3,
			SourceTextBonus:      3,
			SourceComponentBonus: 4,
			SourceOverlapBonus:   5,
		},
		Checks: ChecksConfig{
			ClickThreshold:    4,
			KeyboardThreshold: 2,
			OtherThreshold:    1,
			MinWindowAlpha:    0.1,
			MinWindowSize:     100,
			ReferenceSizes: []ScreenSize{
				{Width: 1920, Height: 1080},
				{Width: 2560, Height: 1440},
				{Width: 3840, Height: 2160},
			},
			EdgeMarginPx:     10,
			PassRate:         0.6,
			HighRedundancy:   3,
			MediumRedundancy: 2,
			MinDetectedLen:   2,
			MaxTargetLen:     30,
		},
		Convert: ConvertConfig{
			QualityThreshold: 0.8,
		},
		Guard: GuardConfig{
			SamePixelTolerance: 2,
			ClickTolerance:     15,
		},
		Replay: ReplayConfig{
			PulseInterval:    5 * time.Second,
			FirstPulseDelay:  1 * time.Second,
			MaxPulsesPerItem: 100,
		},
		Store: StoreConfig{
			Path: filepath.Join(".screenpilot", "screenpilot.db"),
		},
		Watch: WatchConfig{
			SessionsDir: filepath.Join(".screenpilot", "sessions"),
			Debounce:    500 * time.Millisecond,
		},
	}
}

// Load reads a config file (YAML or JSON by extension) over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides path settings from the environment. Environment
// wins over the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SCREENPILOT_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SCREENPILOT_SESSIONS_DIR"); v != "" {
		c.Watch.SessionsDir = v
	}
}

// Validate rejects configurations the decision core cannot run with.
func (c *Config) Validate() error {
	if c.Scoring.SimilarityCutoff < 0 || c.Scoring.SimilarityCutoff > 1 {
		return fmt.Errorf("scoring.similarity_cutoff must be in [0,1], got %v", c.Scoring.SimilarityCutoff)
	}
	if c.Fusion.IoUThreshold < 0 || c.Fusion.IoUThreshold > 1 {
		return fmt.Errorf("fusion.iou_threshold must be in [0,1], got %v", c.Fusion.IoUThreshold)
	}
	if c.Checks.ClickThreshold < 0 || c.Checks.ClickThreshold > 5 {
		return fmt.Errorf("checks.click_threshold must be in [0,5], got %d", c.Checks.ClickThreshold)
	}
	if c.Checks.PassRate < 0 || c.Checks.PassRate > 1 {
		return fmt.Errorf("checks.pass_rate must be in [0,1], got %v", c.Checks.PassRate)
	}
	if c.Convert.QualityThreshold < 0 || c.Convert.QualityThreshold > 1 {
		return fmt.Errorf("convert.quality_threshold must be in [0,1], got %v", c.Convert.QualityThreshold)
	}
	if c.Guard.SamePixelTolerance > c.Guard.ClickTolerance {
		return fmt.Errorf("guard.same_pixel_tolerance (%v) exceeds guard.click_tolerance (%v)",
			c.Guard.SamePixelTolerance, c.Guard.ClickTolerance)
	}
	if len(c.Checks.ReferenceSizes) == 0 {
		return fmt.Errorf("checks.reference_sizes must not be empty")
	}
	return nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
