package module

import (
	"fmt"
	"sync"

	"github.com/tracekit/spanql/pkg/types"
)

// Registry holds registered modules. Registration is expected to finish
// before concurrent querying begins; resolution is read-only and safe to
// call from multiple query goroutines.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register validates and adds a module. Registering a name twice is an
// error; modules are loaded once per registry lifetime.
func (r *Registry) Register(m *Module) error {
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[m.Name]; ok {
		return fmt.Errorf("module: %q already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Resolve returns the named module. It fails with a NotFound error for
// unregistered names and with a CyclicDependency error if the module's
// include closure contains a cycle.
func (r *Registry) Resolve(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("module: %q: %w", name, types.ErrNotFound)
	}
	if err := r.checkCycles(name, make(map[string]int)); err != nil {
		return nil, err
	}
	return m, nil
}

// checkCycles walks the include graph depth-first. state is 0 for
// unvisited, 1 for in-progress, 2 for done.
func (r *Registry) checkCycles(name string, state map[string]int) error {
	switch state[name] {
	case 1:
		return fmt.Errorf("module: %q: %w", name, types.ErrCyclicDependency)
	case 2:
		return nil
	}
	state[name] = 1

	m, ok := r.modules[name]
	if !ok {
		return fmt.Errorf("module: %q: %w", name, types.ErrNotFound)
	}
	for _, dep := range m.Includes {
		if err := r.checkCycles(dep, state); err != nil {
			return err
		}
	}

	state[name] = 2
	return nil
}

// Scope is the query-local view of included definitions. Two concurrent
// queries including different modules do not interfere because each
// carries its own Scope.
type Scope struct {
	registry  *Registry
	included  map[string]bool
	tables    map[string]*TableDef
	functions map[string]*FunctionDef
}

// NewScope creates an empty scope backed by the registry.
func (r *Registry) NewScope() *Scope {
	return &Scope{
		registry:  r,
		included:  make(map[string]bool),
		tables:    make(map[string]*TableDef),
		functions: make(map[string]*FunctionDef),
	}
}

// Include makes the named module's tables and functions, and those of
// its transitive includes, visible in this scope. Including the same
// module twice is a no-op.
func (s *Scope) Include(name string) error {
	if s.included[name] {
		return nil
	}

	m, err := s.registry.Resolve(name)
	if err != nil {
		return err
	}
	s.included[name] = true

	for _, dep := range m.Includes {
		if err := s.Include(dep); err != nil {
			return err
		}
	}

	for _, t := range m.Tables {
		if prev, ok := s.tables[t.Name]; ok && prev != t {
			return fmt.Errorf("module: table %q defined by more than one included module: %w",
				t.Name, types.ErrSchema)
		}
		s.tables[t.Name] = t
	}
	for _, f := range m.Functions {
		if prev, ok := s.functions[f.Name]; ok && prev != f {
			return fmt.Errorf("module: function %q defined by more than one included module: %w",
				f.Name, types.ErrSchema)
		}
		s.functions[f.Name] = f
	}

	return nil
}

// Table returns the named derived-table definition, if included.
func (s *Scope) Table(name string) (*TableDef, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Function returns the named scalar-function definition, if included.
func (s *Scope) Function(name string) (*FunctionDef, bool) {
	f, ok := s.functions[name]
	return f, ok
}
