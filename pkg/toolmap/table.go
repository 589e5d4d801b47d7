// Package toolmap maps tools to the handler, destination and resource group
// their jobs use.
package toolmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

// ErrAmbiguousToolEntry is returned for a tool entry declaring both an id
// and a class, or neither.
var ErrAmbiguousToolEntry = errors.New("tool entry must declare exactly one of id or class")

type ErrInvalidToolClass struct {
	Class string
}

func NewErrInvalidToolClass(class string) ErrInvalidToolClass {
	return ErrInvalidToolClass{Class: class}
}

func (e ErrInvalidToolClass) Error() string {
	return fmt.Sprintf("invalid tool class %q, expected one of %v", e.Class, models.ToolClasses())
}

// Entry is the job configuration of a tool. An empty Handler or Destination
// means the default one.
type Entry struct {
	Handler     string
	Destination string
	Resources   string
	Params      map[string]any
}

func (e Entry) copy() Entry {
	if e.Params != nil {
		e.Params = deepcopy.Copy(e.Params).(map[string]any)
	}
	return e
}

// Table holds the tool entries keyed by normalized tool id and by tool class.
type Table struct {
	byID      map[string][]Entry
	byClass   map[string][]Entry
	defaultTo Entry
}

// NormalizeID lower-cases a tool id and strips trailing slashes.
func NormalizeID(id string) string {
	return strings.TrimRight(strings.ToLower(id), "/")
}

// New builds the table. Jobs of tools matching no entry go to
// defaultHandler and defaultDestination.
func New(tools []*models.ToolEntry, defaultHandler, defaultDestination string) (*Table, error) {
	t := &Table{
		byID:      make(map[string][]Entry),
		byClass:   make(map[string][]Entry),
		defaultTo: Entry{Handler: defaultHandler, Destination: defaultDestination},
	}
	for _, tool := range tools {
		if (tool.ID == "") == (tool.Class == "") {
			return nil, fmt.Errorf("tool %q: %w", tool.ID+tool.Class, ErrAmbiguousToolEntry)
		}
		entry := (Entry{
			Handler:     tool.Handler,
			Destination: tool.Environment,
			Resources:   tool.Resources,
			Params:      tool.Params,
		}).copy()
		if tool.ID != "" {
			id := NormalizeID(tool.ID)
			t.byID[id] = append(t.byID[id], entry)
			continue
		}
		if !slices.Contains(models.ToolClasses(), tool.Class) {
			return nil, NewErrInvalidToolClass(tool.Class)
		}
		t.byClass[tool.Class] = append(t.byClass[tool.Class], entry)
	}
	return t, nil
}

// Lookup returns the entries of the first id in ids having any entry, else
// those of the first class in classes having any entry, else the default
// entry. Callers pass the fallback forms of one tool id, most specific first.
// A matching id wins even when none of its entries carry params.
func (t *Table) Lookup(ids []string, classes []string) []Entry {
	for _, id := range ids {
		if entries, ok := t.byID[NormalizeID(id)]; ok {
			return copyEntries(entries)
		}
	}
	for _, class := range classes {
		if entries, ok := t.byClass[class]; ok {
			return copyEntries(entries)
		}
	}
	return []Entry{t.Default()}
}

// Default is the entry of tools without a configuration of their own.
func (t *Table) Default() Entry {
	return t.defaultTo.copy()
}

// ResourceGroup returns the resource group of the first entry declared for
// the tool id that names one.
func (t *Table) ResourceGroup(toolID string) (string, bool) {
	for _, entry := range t.byID[NormalizeID(toolID)] {
		if entry.Resources != "" {
			return entry.Resources, true
		}
	}
	return "", false
}

// IDs returns the normalized tool ids with entries, sorted.
func (t *Table) IDs() []string {
	ids := maps.Keys(t.byID)
	slices.Sort(ids)
	return ids
}

func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.copy()
	}
	return out
}

// FallbackIDs returns the forms of a tool id tried in order during lookup:
// the full id, the id without its version, and the bare tool id. Ids that
// do not come from a tool shed repository have a single form.
//
//	toolshed.example.org/repos/owner/repo/tool/1.0
//	toolshed.example.org/repos/owner/repo/tool
//	tool
func FallbackIDs(toolID string) []string {
	ids := []string{toolID}
	parts := strings.Split(strings.TrimRight(toolID, "/"), "/")
	if len(parts) < 3 || !slices.Contains(parts, "repos") {
		return ids
	}
	withoutVersion := strings.Join(parts[:len(parts)-1], "/")
	bare := parts[len(parts)-2]
	for _, id := range []string{withoutVersion, bare} {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
