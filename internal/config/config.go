package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/survey"
)

// DefaultConfigPath is the path to the canonical defaults file.
// This is the single source of truth for all default engine values.
const DefaultConfigPath = "config/qrdar.defaults.json"

// Config represents the root configuration for a marker survey run.
// Every field is optional; the Get* methods supply defaults for fields
// omitted from the JSON.
type Config struct {
	// Sticker extraction
	IntensityStart      *float64 `json:"intensity_start,omitempty"`
	IntensityStep       *float64 `json:"intensity_step,omitempty"`
	MinIntensity        *float64 `json:"min_intensity,omitempty"`
	MinStickerPoints    *int     `json:"min_sticker_points,omitempty"`
	StickerDBSCANEps    *float64 `json:"sticker_dbscan_eps,omitempty"`
	StickerDBSCANMinPts *int     `json:"sticker_dbscan_min_pts,omitempty"`
	MinStickerClusters  *int     `json:"min_sticker_clusters,omitempty"`
	MaxStickerExtent    *float64 `json:"max_sticker_extent,omitempty"`
	DistanceTolerance   *float64 `json:"distance_tolerance,omitempty"`
	MinNeighbourMatches *int     `json:"min_neighbour_matches,omitempty"`

	// Registration
	MaxCandidates *int        `json:"max_candidates,omitempty"`
	AcceptRMSE    *float64    `json:"accept_rmse,omitempty"`
	ZExtentMin    *float64    `json:"z_extent_min,omitempty"`
	ZExtentMax    *float64    `json:"z_extent_max,omitempty"`
	Template      [][]float64 `json:"template,omitempty"` // four [x, y, z] sticker positions

	// Rasterization
	CellSize          *float64  `json:"cell_size,omitempty"`
	LowIntensity      *float64  `json:"low_intensity,omitempty"`
	DensityThresholds []float64 `json:"density_thresholds,omitempty"`

	// Dictionary
	Dictionary    *string `json:"dictionary,omitempty"` // path to a JSON code dictionary
	ExpectedCodes []int   `json:"expected_codes,omitempty"`

	// Survey
	TargetDBSCANEps  *float64 `json:"target_dbscan_eps,omitempty"`
	TargetMinPts     *int     `json:"target_min_pts,omitempty"`
	TileSearchRadius *float64 `json:"tile_search_radius,omitempty"`
	TileMargin       *float64 `json:"tile_margin,omitempty"`
	Workers          *int     `json:"workers,omitempty"`
	AmbiguityLogDir  *string  `json:"ambiguity_log_dir,omitempty"`
	PCDOutputDir     *string  `json:"pcd_output_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the JSON fall back to their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/qrdar/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Cross-field
// checks are left to EngineParams.
func (c *Config) Validate() error {
	if c.IntensityStep != nil && *c.IntensityStep <= 0 {
		return fmt.Errorf("intensity_step must be positive, got %f", *c.IntensityStep)
	}
	if c.MaxCandidates != nil && *c.MaxCandidates < 3 {
		return fmt.Errorf("max_candidates must be at least 3, got %d", *c.MaxCandidates)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.Template != nil {
		if len(c.Template) != 4 {
			return fmt.Errorf("template must have 4 sticker positions, got %d", len(c.Template))
		}
		for i, p := range c.Template {
			if len(p) != 3 {
				return fmt.Errorf("template position %d must have 3 coordinates, got %d", i, len(p))
			}
		}
	}
	for _, th := range c.DensityThresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("density_thresholds must be between 0 and 1, got %f", th)
		}
	}
	if c.TargetDBSCANEps != nil && *c.TargetDBSCANEps <= 0 {
		return fmt.Errorf("target_dbscan_eps must be positive, got %f", *c.TargetDBSCANEps)
	}
	return nil
}

// EngineParams assembles the engine parameters, applying defaults for
// unset fields, and validates the result.
func (c *Config) EngineParams() (marker.Params, error) {
	def := marker.DefaultParams()
	p := marker.Params{
		IntensityStart:      c.GetIntensityStart(),
		IntensityStep:       c.GetIntensityStep(),
		MinIntensity:        c.GetMinIntensity(),
		MinStickerPoints:    c.GetMinStickerPoints(),
		StickerEps:          c.GetStickerDBSCANEps(),
		StickerMinPts:       c.GetStickerDBSCANMinPts(),
		MinStickerClusters:  c.GetMinStickerClusters(),
		MaxStickerExtent:    c.GetMaxStickerExtent(),
		DistanceTolerance:   c.GetDistanceTolerance(),
		MinNeighbourMatches: c.GetMinNeighbourMatches(),
		MaxCandidates:       c.GetMaxCandidates(),
		AcceptRMSE:          c.GetAcceptRMSE(),
		ZExtentMin:          c.GetZExtentMin(),
		ZExtentMax:          c.GetZExtentMax(),
		CodeRegion:          def.CodeRegion,
		CellSize:            c.GetCellSize(),
		LowIntensity:        c.GetLowIntensity(),
		DensityThresholds:   c.GetDensityThresholds(),
	}
	if err := p.Validate(); err != nil {
		return marker.Params{}, err
	}
	return p, nil
}

// GetTemplate returns the configured sticker template or the default one.
func (c *Config) GetTemplate() marker.Template {
	if len(c.Template) != 4 {
		return marker.DefaultTemplate()
	}
	var t marker.Template
	for i, p := range c.Template {
		copy(t[i][:], p)
	}
	return t
}

// SurveyOptions assembles the survey options, applying defaults for unset
// fields.
func (c *Config) SurveyOptions() survey.Options {
	return survey.Options{
		TargetEps:        c.GetTargetDBSCANEps(),
		TargetMinPts:     c.GetTargetMinPts(),
		TileSearchRadius: c.GetTileSearchRadius(),
		TileMargin:       c.GetTileMargin(),
		Workers:          c.GetWorkers(),
		AmbiguityLogDir:  c.GetAmbiguityLogDir(),
		PCDOutputDir:     c.GetPCDOutputDir(),
	}
}

// ApplyOverrides sets the fields given on the command line. Nil arguments
// leave the configured value in place.
func (c *Config) ApplyOverrides(minIntensity *float64, workers, maxCandidates *int) error {
	if minIntensity != nil {
		c.MinIntensity = ptrFloat64(*minIntensity)
	}
	if workers != nil {
		c.Workers = ptrInt(*workers)
	}
	if maxCandidates != nil {
		c.MaxCandidates = ptrInt(*maxCandidates)
	}
	return c.Validate()
}
