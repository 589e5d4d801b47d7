package runner

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Namespace is where bare runner names are looked up first.
const Namespace = "jobconf.runners"

type ErrModuleNotFound struct {
	Path string
}

func NewErrModuleNotFound(path string) ErrModuleNotFound {
	return ErrModuleNotFound{Path: path}
}

func (e ErrModuleNotFound) Error() string {
	return fmt.Sprintf("job runner module %s not found", e.Path)
}

type ErrMissingExports struct {
	Path string
}

func NewErrMissingExports(path string) ErrMissingExports {
	return ErrMissingExports{Path: path}
}

func (e ErrMissingExports) Error() string {
	return fmt.Sprintf("job runner module %s does not declare exported runners; load it as %s:ClassName", e.Path, e.Path)
}

// Table is the closed set of runner modules plugins can be loaded from.
type Table struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func NewTable(modules map[string]Module) *Table {
	t := &Table{modules: make(map[string]Module, len(modules))}
	for path, m := range modules {
		t.Add(path, m)
	}
	return t
}

func (t *Table) Add(path string, m Module) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modules[path] = m
}

func (t *Table) Get(path string) (Module, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.modules[path]
	return m, ok
}

func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := maps.Keys(t.modules)
	slices.Sort(keys)
	return keys
}

// Resolve finds the module named by a load specifier and the class names
// to instantiate from it. Three forms are accepted, tried in order:
//
//	module:ClassName  the named class of module
//	name              Namespace.name, or the module "name" when that is absent
//	dotted.module     the module itself
//
// Without an explicit class every exported class of the module is loaded.
func (t *Table) Resolve(load string) (Module, []string, error) {
	if path, class, ok := strings.Cut(load, ":"); ok {
		m, found := t.Get(path)
		if !found {
			return Module{}, nil, NewErrModuleNotFound(path)
		}
		return m, []string{class}, nil
	}

	path := load
	if !strings.Contains(load, ".") {
		if _, found := t.Get(Namespace + "." + load); found {
			path = Namespace + "." + load
		}
	}
	m, found := t.Get(path)
	if !found {
		return Module{}, nil, NewErrModuleNotFound(path)
	}
	if len(m.Exports) == 0 {
		return Module{}, nil, NewErrMissingExports(path)
	}
	return m, slices.Clone(m.Exports), nil
}
