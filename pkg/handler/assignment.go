// Package handler tracks the handler processes of a job configuration and
// the runner plugins each of them loads.
package handler

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

// DefaultTag is the pool of every declared handler when more than one is
// declared and none is the default.
const DefaultTag = "_default_"

type ErrUnknownHandler struct {
	IDOrTag string
}

func NewErrUnknownHandler(idOrTag string) ErrUnknownHandler {
	return ErrUnknownHandler{IDOrTag: idOrTag}
}

func (e ErrUnknownHandler) Error() string {
	return fmt.Sprintf("default handler %q is neither a handler id nor a handler tag", e.IDOrTag)
}

// Assignment holds the handler pools and the runner plugins bound to each
// handler.
type Assignment struct {
	mu sync.RWMutex
	// pools maps handler ids and tags to handler ids.
	pools           map[string][]string
	handlerIDs      []string
	plugins         map[string][]string
	defaultID       string
	methods         []string
	maxGrab         int
	readyWindowSize int
}

// New builds the handler table. A process with no declared handlers handles
// jobs itself under serverName.
func New(handling *models.Handling, serverName string) (*Assignment, error) {
	if handling == nil {
		handling = &models.Handling{}
	}
	a := &Assignment{
		pools:           make(map[string][]string),
		plugins:         make(map[string][]string),
		maxGrab:         handling.MaxGrab,
		readyWindowSize: handling.ReadyWindowSize,
	}

	ids := handling.ProcessIDs()
	for _, id := range ids {
		a.pools[id] = []string{id}
		a.handlerIDs = append(a.handlerIDs, id)
	}
	for _, id := range ids {
		process := handling.Processes[id]
		if process == nil {
			continue
		}
		for _, tag := range process.Tags {
			if slices.Contains(a.handlerIDs, tag) {
				return nil, fmt.Errorf("handler tag %q is also a handler id", tag)
			}
			a.pools[tag] = append(a.pools[tag], id)
		}
		if len(process.Plugins) > 0 {
			a.Assign(id, process.Plugins)
		}
	}

	switch {
	case handling.Default != "":
		if _, ok := a.pools[handling.Default]; !ok {
			return nil, NewErrUnknownHandler(handling.Default)
		}
		a.defaultID = handling.Default
	case len(a.handlerIDs) == 1:
		a.defaultID = a.handlerIDs[0]
	case len(a.handlerIDs) == 0:
		a.defaultID = serverName
		a.pools[serverName] = []string{serverName}
		a.handlerIDs = []string{serverName}
	default:
		a.defaultID = DefaultTag
		a.pools[DefaultTag] = slices.Clone(a.handlerIDs)
	}

	for _, method := range handling.Assign {
		if !slices.Contains(models.AssignmentMethods(), method) {
			return nil, fmt.Errorf("unknown handler assignment method %q, expected one of %v", method, models.AssignmentMethods())
		}
	}
	a.methods = slices.Clone(handling.Assign)
	if len(a.methods) == 0 {
		if len(handling.Processes) > 0 {
			a.methods = []string{models.AssignDBSkipLocked}
		} else {
			a.methods = []string{models.AssignDBPreassign}
		}
	}
	return a, nil
}

// Assign binds runner plugin ids to a handler. Only those plugins are loaded
// by the handler from then on.
func (a *Assignment) Assign(handlerID string, pluginIDs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plugins[handlerID] = slices.Clone(pluginIDs)
}

// RunnerIDsFor returns the runner plugins assigned to handlerID. The second
// result is false when the handler has no assignment and loads every plugin.
func (a *Assignment) RunnerIDsFor(handlerID string) ([]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids, ok := a.plugins[handlerID]
	if !ok {
		return nil, false
	}
	return slices.Clone(ids), true
}

// Handlers returns the handler ids reachable through a handler id or tag.
func (a *Assignment) Handlers(idOrTag string) ([]string, bool) {
	ids, ok := a.pools[idOrTag]
	return slices.Clone(ids), ok
}

func (a *Assignment) IsHandler(id string) bool {
	return slices.Contains(a.handlerIDs, id)
}

// HandlerIDs returns every handler id in sorted order.
func (a *Assignment) HandlerIDs() []string {
	return slices.Clone(a.handlerIDs)
}

// Tags returns every pool name that is not a handler id.
func (a *Assignment) Tags() []string {
	var tags []string
	for key := range a.pools {
		if !a.IsHandler(key) {
			tags = append(tags, key)
		}
	}
	slices.Sort(tags)
	return tags
}

func (a *Assignment) DefaultID() string {
	return a.defaultID
}

func (a *Assignment) Methods() []string {
	return slices.Clone(a.methods)
}

func (a *Assignment) MaxGrab() int {
	return a.maxGrab
}

func (a *Assignment) ReadyWindowSize() int {
	return a.readyWindowSize
}
