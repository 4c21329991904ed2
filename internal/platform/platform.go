// Package platform loads named platform profiles (duration windows and
// scoring weights) from TOML. Built-in profiles are embedded; an external
// file can replace them. Bad profile configuration is a startup error, never
// a per-request one.
package platform

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ivanshev/segcut/internal/types"
)

//go:embed profiles.toml
var builtinTOML []byte

type fileFormat struct {
	Profiles []types.PlatformProfile `toml:"profiles"`
}

// Registry holds validated profiles addressable by name.
type Registry struct {
	profiles map[string]types.PlatformProfile
	names    []string
}

// Default returns the registry built from the embedded profiles. The embedded
// file is part of the binary, so a failure here is a programming error.
func Default() *Registry {
	r, err := parse(builtinTOML)
	if err != nil {
		panic(fmt.Sprintf("built-in platform profiles invalid: %v", err))
	}
	return r
}

// Load reads profiles from an external TOML file.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform profiles: %w", err)
	}
	r, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}

func parse(b []byte) (*Registry, error) {
	var ff fileFormat
	if err := toml.Unmarshal(b, &ff); err != nil {
		return nil, err
	}
	if len(ff.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}

	r := &Registry{profiles: make(map[string]types.PlatformProfile, len(ff.Profiles))}
	for _, p := range ff.Profiles {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.Name]; dup {
			return nil, fmt.Errorf("profile %q: duplicate name", p.Name)
		}
		r.profiles[p.Name] = p
		r.names = append(r.names, p.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Validate enforces the profile invariants: a proper duration window with the
// optimum strictly inside it, and weights summing to 1.0.
func Validate(p types.PlatformProfile) error {
	if p.Name == "" {
		return fmt.Errorf("profile without a name")
	}
	if p.MinDuration <= 0 || p.MinDuration >= p.MaxDuration {
		return fmt.Errorf("profile %q: need 0 < min_duration < max_duration, got [%v,%v]", p.Name, p.MinDuration, p.MaxDuration)
	}
	if p.OptimalDuration <= p.MinDuration || p.OptimalDuration >= p.MaxDuration {
		return fmt.Errorf("profile %q: optimal_duration %v must lie strictly inside [%v,%v]", p.Name, p.OptimalDuration, p.MinDuration, p.MaxDuration)
	}
	w := p.Weights
	if w.Relevance < 0 || w.Engagement < 0 || w.DurationFit < 0 {
		return fmt.Errorf("profile %q: negative weight", p.Name)
	}
	if sum := w.Relevance + w.Engagement + w.DurationFit; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("profile %q: weights sum to %v, want 1.0", p.Name, sum)
	}
	return nil
}

// Get looks up a profile by name.
func (r *Registry) Get(name string) (types.PlatformProfile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Names lists available profile names, sorted.
func (r *Registry) Names() []string {
	return r.names
}
