package dialect

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry holds the known dialect profiles. The shipped profiles load
// from embedded YAML; applications may register additional ones at
// startup.
type Registry struct {
	profiles map[string]Profile
	mu       sync.RWMutex
}

// NewRegistry creates a registry and loads the embedded profiles.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]Profile),
	}

	for _, name := range []string{"postgres", "cockroach", "mysql", "sqlite"} {
		if err := r.loadProfileFile(name); err != nil {
			return nil, fmt.Errorf("failed to load %s dialect: %w", name, err)
		}
	}

	return r, nil
}

// loadProfileFile loads one dialect's profile YAML file.
func (r *Registry) loadProfileFile(name string) error {
	filename := fmt.Sprintf("config/%s.yaml", name)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}
	if profile.Name != name {
		return fmt.Errorf("profile %s declares dialect %q", filename, profile.Name)
	}

	r.mu.Lock()
	r.profiles[name] = profile
	r.mu.Unlock()

	return nil
}

// Register adds or replaces a profile. Intended for application startup,
// before transactions flow.
func (r *Registry) Register(profile Profile) error {
	if profile.Name == "" {
		return fmt.Errorf("profile has no dialect name")
	}
	r.mu.Lock()
	r.profiles[profile.Name] = profile
	r.mu.Unlock()
	return nil
}

// Profile returns the profile registered under name.
func (r *Registry) Profile(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown dialect: %s", name)
	}
	return profile, nil
}

// Dialect returns a statement renderer for the named profile.
func (r *Registry) Dialect(name string) (*Dialect, error) {
	profile, err := r.Profile(name)
	if err != nil {
		return nil, err
	}
	return NewDialect(profile), nil
}

// Names returns the registered dialect names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
