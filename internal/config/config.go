// Package config provides engine configuration: parallel execution
// thresholds and optimizer pass toggles, loadable from JSON, YAML or
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds engine-wide settings. The zero value is not usable; start
// from NewConfig or pass a partial config through WithDefaults.
type Config struct {
	// Parallel execution
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows before the executor splits work across the pool
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Worker goroutine count (0 = NumCPU)

	// Optimizer passes
	PredicatePushdown  bool `json:"predicate_pushdown" yaml:"predicate_pushdown"`
	ProjectionPushdown bool `json:"projection_pushdown" yaml:"projection_pushdown"`
	ConstantFolding    bool `json:"constant_folding" yaml:"constant_folding"`
	SubexprElimination bool `json:"subexpr_elimination" yaml:"subexpr_elimination"`
	Simplification     bool `json:"simplification" yaml:"simplification"`
	MaxOptimizerPasses int  `json:"max_optimizer_passes" yaml:"max_optimizer_passes"` // Fixpoint bound

	// Scan defaults
	CSVInferRows int `json:"csv_infer_rows" yaml:"csv_infer_rows"` // Rows sampled for CSV type inference
	ScanChunkSize int `json:"scan_chunk_size" yaml:"scan_chunk_size"` // Rows per batch emitted by file scans
}

const (
	DefaultParallelThreshold  = 1000
	DefaultMaxOptimizerPasses = 5
	DefaultCSVInferRows       = 100
	DefaultScanChunkSize      = 8192
)

var (
	globalConfig Config
	configMutex  sync.RWMutex
)

func init() {
	globalConfig = NewConfig()
}

// NewConfig returns the default configuration: parallelism above 1000 rows,
// all optimizer passes enabled.
func NewConfig() Config {
	return Config{
		ParallelThreshold:  DefaultParallelThreshold,
		WorkerPoolSize:     0,
		PredicatePushdown:  true,
		ProjectionPushdown: true,
		ConstantFolding:    true,
		SubexprElimination: true,
		Simplification:     true,
		MaxOptimizerPasses: DefaultMaxOptimizerPasses,
		CSVInferRows:       DefaultCSVInferRows,
		ScanChunkSize:      DefaultScanChunkSize,
	}
}

// Validate returns an error when a setting is out of range.
func (c *Config) Validate() error {
	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}
	if c.MaxOptimizerPasses <= 0 {
		return fmt.Errorf("MaxOptimizerPasses must be positive, got %d", c.MaxOptimizerPasses)
	}
	if c.CSVInferRows <= 0 {
		return fmt.Errorf("CSVInferRows must be positive, got %d", c.CSVInferRows)
	}
	if c.ScanChunkSize <= 0 {
		return fmt.Errorf("ScanChunkSize must be positive, got %d", c.ScanChunkSize)
	}
	return nil
}

// WithDefaults fills zero-valued numeric fields with defaults so a partial
// JSON or YAML document yields a usable config.
func (c Config) WithDefaults() Config {
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = DefaultParallelThreshold
	}
	if c.MaxOptimizerPasses == 0 {
		c.MaxOptimizerPasses = DefaultMaxOptimizerPasses
	}
	if c.CSVInferRows == 0 {
		c.CSVInferRows = DefaultCSVInferRows
	}
	if c.ScanChunkSize == 0 {
		c.ScanChunkSize = DefaultScanChunkSize
	}
	return c
}

// SetGlobalConfig replaces the process-wide configuration.
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns a copy of the process-wide configuration.
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON parses a JSON configuration document.
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	return config.WithDefaults(), nil
}

// LoadFromEnv reads IBIS_-prefixed environment variables over the default
// configuration. Unparseable values are ignored.
func LoadFromEnv() Config {
	config := NewConfig()

	if val := os.Getenv("IBIS_PARALLEL_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ParallelThreshold = parsed
		}
	}
	if val := os.Getenv("IBIS_WORKER_POOL_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.WorkerPoolSize = parsed
		}
	}
	if val := os.Getenv("IBIS_PREDICATE_PUSHDOWN"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.PredicatePushdown = parsed
		}
	}
	if val := os.Getenv("IBIS_PROJECTION_PUSHDOWN"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.ProjectionPushdown = parsed
		}
	}
	if val := os.Getenv("IBIS_CONSTANT_FOLDING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.ConstantFolding = parsed
		}
	}
	if val := os.Getenv("IBIS_SUBEXPR_ELIMINATION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.SubexprElimination = parsed
		}
	}
	if val := os.Getenv("IBIS_SIMPLIFICATION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Simplification = parsed
		}
	}
	if val := os.Getenv("IBIS_MAX_OPTIMIZER_PASSES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxOptimizerPasses = parsed
		}
	}
	if val := os.Getenv("IBIS_CSV_INFER_ROWS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.CSVInferRows = parsed
		}
	}
	if val := os.Getenv("IBIS_SCAN_CHUNK_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ScanChunkSize = parsed
		}
	}

	return config
}
