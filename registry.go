package mrjob

import (
	"fmt"
	"sort"
	"sync"
)

// JobFactory builds a job's step plan from its passthrough configuration
// options. The factory sees the options unchanged; the harness never
// interprets them.
type JobFactory func(conf JobConf) (*JobPlan, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]JobFactory)
)

// Register makes a job resolvable by name. Registering the same name twice is
// an error.
func Register(name string, factory JobFactory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	registry[name] = factory
	return nil
}

// MustRegister is Register for package init blocks; it panics on a duplicate
// name.
func MustRegister(name string, factory JobFactory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// ResolveJob looks up a registered job by name and constructs its plan with
// the given passthrough options.
func ResolveJob(name string, conf JobConf) (*JobPlan, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()

	if !exists {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unresolvable job %q", name)}
	}
	return factory(conf)
}

// RegisteredJobs lists all registered job names, sorted.
func RegisteredJobs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
