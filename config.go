package fastest

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds the tunable thresholds and paths the core pipeline consults.
// Loading it from a file is an external/CLI concern (spec.md §1); the typed
// struct and its defaults/validation are carried as ambient infrastructure.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Worker     WorkerConfig     `yaml:"worker"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

// StrategyConfig overrides the thresholds spec.md §4.3 specifies as
// defaults: InProcess for N<=InProcessMax, WarmWorkers for
// InProcessMax<N<=WarmWorkersMax, FullDistributed beyond that.
type StrategyConfig struct {
	InProcessMax       int `yaml:"in_process_max"`
	WarmWorkersMax     int `yaml:"warm_workers_max"`
	WarmWorkersPoolCap int `yaml:"warm_workers_pool_cap"`
}

// WorkerConfig configures the WorkerPool's subprocess lifecycle.
type WorkerConfig struct {
	BinaryPath   string        `yaml:"binary_path"`
	GracePeriod  time.Duration `yaml:"grace_period"`
	RespawnLimit int           `yaml:"respawn_limit"`
}

// DiscoveryConfig configures Parser caching. IncludeGlobs and ExcludeGlobs
// are loaded from the file but not read by discovery, which always matches
// test_*.py and *_test.py.
type DiscoveryConfig struct {
	IncludeGlobs []string `yaml:"include"`
	ExcludeGlobs []string `yaml:"exclude"`
	CacheEnabled bool     `yaml:"cache_enabled"`
	CachePath    string   `yaml:"cache_path"`
}

// SchedulingConfig configures Scheduler batching policy.
type SchedulingConfig struct {
	BatchSize   int  `yaml:"batch_size"`
	StrictXPass bool `yaml:"strict_xpass"`
}

// DefaultConfig returns the spec.md-mandated defaults (§4.3, §4.5).
func DefaultConfig() *Config {
	return &Config{
		Strategy: StrategyConfig{
			InProcessMax:       20,
			WarmWorkersMax:     100,
			WarmWorkersPoolCap: 4,
		},
		Worker: WorkerConfig{
			BinaryPath:   "fastest-worker",
			GracePeriod:  5 * time.Second,
			RespawnLimit: 3,
		},
		Discovery: DiscoveryConfig{
			IncludeGlobs: []string{"test_*.py", "*_test.py"},
			CacheEnabled: false,
			CachePath:    ".fastest_cache.sqlite3",
		},
		Scheduling: SchedulingConfig{
			BatchSize:   16,
			StrictXPass: false,
		},
	}
}

// LoadConfig loads configuration from the given path, falling back to
// DefaultConfig when the file does not exist, mirroring snapsql.LoadConfig.
func LoadConfig(configPath string) (*Config, error) {
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	config := DefaultConfig()

	if configPath == "" || !fileExists(configPath) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalWithOptions(data, config, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for internally inconsistent thresholds.
func (c *Config) Validate() error {
	if c.Strategy.InProcessMax < 0 {
		return fmt.Errorf("%w: strategy.in_process_max must be >= 0", ErrConfigValidation)
	}

	if c.Strategy.WarmWorkersMax < c.Strategy.InProcessMax {
		return fmt.Errorf("%w: strategy.warm_workers_max must be >= in_process_max", ErrConfigValidation)
	}

	if c.Strategy.WarmWorkersPoolCap <= 0 {
		return fmt.Errorf("%w: strategy.warm_workers_pool_cap must be > 0", ErrConfigValidation)
	}

	if c.Scheduling.BatchSize <= 0 {
		return fmt.Errorf("%w: scheduling.batch_size must be > 0", ErrConfigValidation)
	}

	if c.Worker.BinaryPath == "" {
		return fmt.Errorf("%w: worker.binary_path is required", ErrConfigValidation)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
