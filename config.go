package uco

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config tunes the runtime's resource pools and I/O defaults. Start
// substitutes DefaultConfig only for an entirely zero Config; a Config with
// some fields set is used as given, zero fields included. LoadConfigFile
// fills zero fields one by one.
type Config struct {
	// StackSize is the advisory per-uthread stack budget in bytes, recorded
	// on the stack bucket (see stack.go); it does not change how many slots
	// are allocated.
	StackSize int `toml:"stack_size"`
	// StackRegionSlots is how many stack slots a freshly-grown region holds.
	StackRegionSlots int `toml:"stack_region_slots"`
	// DefaultHWM/DefaultLWM seed new sockets' backpressure thresholds.
	DefaultHWM int `toml:"default_hwm"`
	DefaultLWM int `toml:"default_lwm"`
	// ReactorBacklog bounds the batch size the reactor backend reports per
	// pump step.
	ReactorBacklog int `toml:"reactor_backlog"`
}

// DefaultConfig returns the configuration runtime.Start uses when none is
// supplied.
func DefaultConfig() Config {
	return Config{
		StackSize:        256 * 1024,
		StackRegionSlots: 256,
		DefaultHWM:       64 * 1024,
		DefaultLWM:       16 * 1024,
		ReactorBacklog:   1024,
	}
}

// LoadConfigFile reads a TOML configuration file, overlaying DefaultConfig
// for any field left at its zero value.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("uco: config file %q: %w", path, err)
	}
	var file Config
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Config{}, fmt.Errorf("uco: decode config %q: %w", path, err)
	}
	if file.StackSize > 0 {
		cfg.StackSize = file.StackSize
	}
	if file.StackRegionSlots > 0 {
		cfg.StackRegionSlots = file.StackRegionSlots
	}
	if file.DefaultHWM > 0 {
		cfg.DefaultHWM = file.DefaultHWM
	}
	if file.DefaultLWM > 0 {
		cfg.DefaultLWM = file.DefaultLWM
	}
	if file.ReactorBacklog > 0 {
		cfg.ReactorBacklog = file.ReactorBacklog
	}
	return cfg, nil
}
