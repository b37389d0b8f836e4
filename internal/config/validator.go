package config

import (
	"fmt"
	"runtime"
)

// ValidateAndSetDefaults rejects nonsensical values and fills in
// CPU-scaled defaults left at zero by every config layer.
func ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Cache.MemoryCapacity < 0 {
		return fmt.Errorf("config: cache.memory_capacity cannot be negative, got %d", cfg.Cache.MemoryCapacity)
	}
	if cfg.Cache.MaxEntrySizeBytes <= 0 {
		return fmt.Errorf("config: cache.max_entry_size_bytes must be positive, got %d", cfg.Cache.MaxEntrySizeBytes)
	}
	if cfg.Indexing.MemoryPressureThreshold <= 0 || cfg.Indexing.MemoryPressureThreshold > 1 {
		return fmt.Errorf("config: indexing.memory_pressure_threshold must be in (0, 1], got %f", cfg.Indexing.MemoryPressureThreshold)
	}
	if cfg.Indexing.MaxQueueSize < 0 {
		return fmt.Errorf("config: indexing.max_queue_size cannot be negative, got %d", cfg.Indexing.MaxQueueSize)
	}

	setSmartDefaults(cfg)
	return nil
}

// setSmartDefaults fills CPU-scaled defaults for knobs left at zero,
// leaving 1) 0 = "at least 4, or cores-1" for worker counts.
func setSmartDefaults(cfg *Config) {
	if cfg.Indexing.MaxWorkers == 0 {
		numCPU := runtime.NumCPU()
		cfg.Indexing.MaxWorkers = max(4, numCPU-1)
	}
	if cfg.Router.MaxOpenCaches == 0 {
		numCPU := runtime.NumCPU()
		cfg.Router.MaxOpenCaches = max(8, numCPU*4)
	}
}
