/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config holds the typed, validated-once-at-startup configuration
// this system runs on. Unlike the dynamic, reflection-driven ConfigMap
// parsing the teacher uses for its live settings, FleetConfig.Size and
// Sector.Kind are enumerated types validated as part of loading: there is no
// surface for a malformed value to reach the reconciliation engine.
package config

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
	fleeterrors "github.com/aws/fleet-autoscaler/pkg/errors"
	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

// FleetConfig is one t-shirt size within a sector.
type FleetConfig struct {
	Size        catalog.Size `json:"size"`
	MinCapacity int          `json:"min_capacity"`
}

// Sector is a named partition of the cluster, all of whose fleets share a
// kind.
type Sector struct {
	Kind   catalog.Kind  `json:"kind"`
	Fleets []FleetConfig `json:"fleets"`
}

// SizesDescending returns the sector's configured sizes, largest first, as
// the capacity planner's packing order requires.
func (s Sector) SizesDescending() []catalog.Size {
	sizes := make([]catalog.Size, len(s.Fleets))
	for i, f := range s.Fleets {
		sizes[i] = f.Size
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Rank() > sizes[j].Rank() })
	return sizes
}

// MinCapacity returns the configured minimum for a size, or 0 if the sector
// has no fleet of that size.
func (s Sector) MinCapacity(size catalog.Size) int {
	for _, f := range s.Fleets {
		if f.Size == size {
			return f.MinCapacity
		}
	}
	return 0
}

// Configuration is the process-wide, immutable configuration loaded once at
// startup.
type Configuration struct {
	SleepIntervalSeconds    int                `json:"sleep_interval"`
	DefaultOverSubscription float64            `json:"default_over_subscription"`
	ReservedCPUs            quantity.CPU       `json:"reserved_cpus"`
	ReservedMemory          quantity.Memory    `json:"reserved_memory"`
	Sectors                 map[string]Sector  `json:"sectors"`
}

// Load reads and validates the configuration file at path. Any failure —
// missing file, malformed YAML, or a failed Validate — is returned wrapped
// in a ConfigurationError, which is fatal at startup per the control loop's
// error policy.
func Load(path string) (*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fleeterrors.NewConfigurationError("", fmt.Sprintf("reading %s: %s", path, err))
	}
	var cfg Configuration
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fleeterrors.NewConfigurationError("", fmt.Sprintf("parsing %s: %s", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fleeterrors.NewConfigurationError("", err.Error())
	}
	return &cfg, nil
}

// Validate checks every invariant spec.md §3 requires of a Configuration.
// It accumulates every violation via multierr rather than stopping at the
// first, so a single bad config surfaces all of its problems in one error.
func (c *Configuration) Validate() error {
	var errs error
	if c.SleepIntervalSeconds < 1 {
		errs = multierr.Append(errs, fmt.Errorf("sleep_interval must be >= 1, got %d", c.SleepIntervalSeconds))
	}
	if c.DefaultOverSubscription < 0 {
		errs = multierr.Append(errs, fmt.Errorf("default_over_subscription must be >= 0, got %v", c.DefaultOverSubscription))
	}
	if c.ReservedCPUs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("reserved_cpus must be >= 0"))
	}
	if c.ReservedMemory < 0 {
		errs = multierr.Append(errs, fmt.Errorf("reserved_memory must be >= 0"))
	}
	if len(c.Sectors) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("sectors must not be empty"))
	}
	for name, sector := range c.Sectors {
		if !sector.Kind.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("sector %s: kind must be \"memory\" or \"cpu\", got %q", name, sector.Kind))
		}
		if len(sector.Fleets) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("sector %s: must declare at least one fleet", name))
		}
		seen := map[catalog.Size]bool{}
		for _, f := range sector.Fleets {
			if !f.Size.Valid() {
				errs = multierr.Append(errs, fmt.Errorf("sector %s: unknown size %q", name, f.Size))
				continue
			}
			if seen[f.Size] {
				errs = multierr.Append(errs, fmt.Errorf("sector %s: duplicate size %q", name, f.Size))
			}
			seen[f.Size] = true
			if f.MinCapacity < 0 {
				errs = multierr.Append(errs, fmt.Errorf("sector %s: fleet %s: min_capacity must be >= 0, got %d", name, f.Size, f.MinCapacity))
			}
		}
	}
	return errs
}
