// Package config loads the workflow configuration: study inputs, years,
// classifier hyperparameters and service settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical workflow defaults file.
// This is the single source of truth for all default workflow values.
const DefaultConfigPath = "config/workflow.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Known classifier families. Kept here so config does not depend on the
// classify package.
var classifierFamilies = []string{"random_forest", "svm", "cart"}

// WorkflowConfig is the root configuration. Every field is optional; the
// Get* methods supply defaults for anything omitted.
type WorkflowConfig struct {
	// Inputs
	AOIPath       *string  `json:"aoi_path,omitempty" yaml:"aoi_path,omitempty"`
	SamplePaths   []string `json:"sample_paths,omitempty" yaml:"sample_paths,omitempty"`
	SceneManifest *string  `json:"scene_manifest,omitempty" yaml:"scene_manifest,omitempty"`

	// Study
	Years         []int    `json:"years,omitempty" yaml:"years,omitempty"`
	ReferenceYear *int     `json:"reference_year,omitempty" yaml:"reference_year,omitempty"`
	GSD           *float64 `json:"gsd,omitempty" yaml:"gsd,omitempty"`
	MaxCloudCover *float64 `json:"max_cloud_cover,omitempty" yaml:"max_cloud_cover,omitempty"`

	// Classifier
	Classifier    *string  `json:"classifier,omitempty" yaml:"classifier,omitempty"`
	Trees         *int     `json:"trees,omitempty" yaml:"trees,omitempty"`
	Seed          *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	BagFraction   *float64 `json:"bag_fraction,omitempty" yaml:"bag_fraction,omitempty"`
	MinLeaf       *int     `json:"min_leaf,omitempty" yaml:"min_leaf,omitempty"`
	SVMGamma      *float64 `json:"svm_gamma,omitempty" yaml:"svm_gamma,omitempty"`
	SVMCost       *float64 `json:"svm_cost,omitempty" yaml:"svm_cost,omitempty"`
	SplitSeed     *uint64  `json:"split_seed,omitempty" yaml:"split_seed,omitempty"`
	TrainFraction *float64 `json:"train_fraction,omitempty" yaml:"train_fraction,omitempty"`

	// Queries
	TrendConcurrency *int `json:"trend_concurrency,omitempty" yaml:"trend_concurrency,omitempty"`

	// Service
	Listen    *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	DBPath    *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	ExportDir *string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// EmptyWorkflowConfig returns a WorkflowConfig with all fields unset.
func EmptyWorkflowConfig() *WorkflowConfig {
	return &WorkflowConfig{}
}

// LoadWorkflowConfig loads a WorkflowConfig from a .json, .yaml or .yml
// file no larger than 1MB. Fields omitted from the file fall back to the
// Get* defaults, so partial configs are safe.
func LoadWorkflowConfig(path string) (*WorkflowConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyWorkflowConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *WorkflowConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/lulc/ and deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadWorkflowConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *WorkflowConfig) Validate() error {
	for _, y := range c.Years {
		if y < 1984 || y > 2100 {
			return fmt.Errorf("year %d is outside the supported archive", y)
		}
	}
	if c.ReferenceYear != nil && (*c.ReferenceYear < 1984 || *c.ReferenceYear > 2100) {
		return fmt.Errorf("reference_year %d is outside the supported archive", *c.ReferenceYear)
	}
	if c.GSD != nil && *c.GSD <= 0 {
		return fmt.Errorf("gsd must be positive, got %f", *c.GSD)
	}
	if c.MaxCloudCover != nil && (*c.MaxCloudCover <= 0 || *c.MaxCloudCover > 100) {
		return fmt.Errorf("max_cloud_cover must be in (0, 100], got %f", *c.MaxCloudCover)
	}
	if c.Classifier != nil && !slices.Contains(classifierFamilies, *c.Classifier) {
		return fmt.Errorf("classifier must be one of %v, got %q", classifierFamilies, *c.Classifier)
	}
	if c.Trees != nil && *c.Trees < 1 {
		return fmt.Errorf("trees must be positive, got %d", *c.Trees)
	}
	if c.BagFraction != nil && (*c.BagFraction <= 0 || *c.BagFraction > 1) {
		return fmt.Errorf("bag_fraction must be in (0, 1], got %f", *c.BagFraction)
	}
	if c.MinLeaf != nil && *c.MinLeaf < 1 {
		return fmt.Errorf("min_leaf must be at least 1, got %d", *c.MinLeaf)
	}
	if c.SVMGamma != nil && *c.SVMGamma <= 0 {
		return fmt.Errorf("svm_gamma must be positive, got %f", *c.SVMGamma)
	}
	if c.SVMCost != nil && *c.SVMCost <= 0 {
		return fmt.Errorf("svm_cost must be positive, got %f", *c.SVMCost)
	}
	if c.TrainFraction != nil && (*c.TrainFraction <= 0 || *c.TrainFraction >= 1) {
		return fmt.Errorf("train_fraction must be in (0, 1), got %f", *c.TrainFraction)
	}
	if c.TrendConcurrency != nil && *c.TrendConcurrency < 1 {
		return fmt.Errorf("trend_concurrency must be at least 1, got %d", *c.TrendConcurrency)
	}
	return nil
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetAOIPath returns the AOI GeoJSON path.
func (c *WorkflowConfig) GetAOIPath() string { return getString(c.AOIPath, "data/aoi.geojson") }

// GetSceneManifest returns the scene manifest path.
func (c *WorkflowConfig) GetSceneManifest() string {
	return getString(c.SceneManifest, "data/scenes/manifest.json")
}

// GetYears returns the configured years, ascending and de-duplicated.
func (c *WorkflowConfig) GetYears() []int {
	if len(c.Years) == 0 {
		return []int{1995, 2000, 2005, 2010, 2015, 2020, 2023, 2025}
	}
	years := slices.Clone(c.Years)
	slices.Sort(years)
	return slices.Compact(years)
}

// GetReferenceYear returns the training composite year.
func (c *WorkflowConfig) GetReferenceYear() int {
	if c.ReferenceYear == nil {
		return 2023
	}
	return *c.ReferenceYear
}

// GetGSD returns the aggregation ground sampling distance in metres.
func (c *WorkflowConfig) GetGSD() float64 {
	if c.GSD == nil {
		return 30
	}
	return *c.GSD
}

// GetMaxCloudCover returns the exclusive scene cloud cover limit.
func (c *WorkflowConfig) GetMaxCloudCover() float64 {
	if c.MaxCloudCover == nil {
		return 30
	}
	return *c.MaxCloudCover
}

// GetClassifier returns the classifier family name.
func (c *WorkflowConfig) GetClassifier() string { return getString(c.Classifier, "random_forest") }

// GetTrees returns the forest size.
func (c *WorkflowConfig) GetTrees() int {
	if c.Trees == nil {
		return 100
	}
	return *c.Trees
}

// GetSeed returns the classifier seed.
func (c *WorkflowConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 42
	}
	return *c.Seed
}

// GetBagFraction returns the per-tree bag fraction.
func (c *WorkflowConfig) GetBagFraction() float64 {
	if c.BagFraction == nil {
		return 0.5
	}
	return *c.BagFraction
}

// GetMinLeaf returns the minimum leaf population.
func (c *WorkflowConfig) GetMinLeaf() int {
	if c.MinLeaf == nil {
		return 1
	}
	return *c.MinLeaf
}

// GetSVMGamma returns the RBF gamma.
func (c *WorkflowConfig) GetSVMGamma() float64 {
	if c.SVMGamma == nil {
		return 0.5
	}
	return *c.SVMGamma
}

// GetSVMCost returns the SVM cost.
func (c *WorkflowConfig) GetSVMCost() float64 {
	if c.SVMCost == nil {
		return 10
	}
	return *c.SVMCost
}

// GetSplitSeed returns the train/test split seed.
func (c *WorkflowConfig) GetSplitSeed() uint64 {
	if c.SplitSeed == nil {
		return 0
	}
	return *c.SplitSeed
}

// GetTrainFraction returns the split threshold.
func (c *WorkflowConfig) GetTrainFraction() float64 {
	if c.TrainFraction == nil {
		return 0.8
	}
	return *c.TrainFraction
}

// GetTrendConcurrency returns the number of zonal computations the trend
// query may run at once.
func (c *WorkflowConfig) GetTrendConcurrency() int {
	if c.TrendConcurrency == nil {
		return 1
	}
	return *c.TrendConcurrency
}

// GetListen returns the HTTP listen address.
func (c *WorkflowConfig) GetListen() string { return getString(c.Listen, ":8080") }

// GetDBPath returns the SQLite database path.
func (c *WorkflowConfig) GetDBPath() string { return getString(c.DBPath, "landcover.db") }

// GetExportDir returns the directory export jobs write into.
func (c *WorkflowConfig) GetExportDir() string { return getString(c.ExportDir, "exports") }
