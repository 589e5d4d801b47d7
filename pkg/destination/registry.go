// Package destination holds the destinations of a job configuration.
//
// Records live in a single arena. Lookups by id or tag share the records:
// Get hands out an owned deep copy callers may modify, GetAll hands out
// read-only references to the live records.
package destination

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/runner"
)

type record struct {
	mu sync.RWMutex
	d  *models.Destination
}

func (r *record) copy() *models.Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.d.Copy()
}

type options struct {
	defaultResubmits []models.ResubmitRule
}

type Option func(*options)

// WithDefaultResubmits sets the resubmit rules of destinations that declare
// none.
func WithDefaultResubmits(rules []models.ResubmitRule) Option {
	return func(o *options) {
		o.defaultResubmits = rules
	}
}

type Registry struct {
	records   []*record
	byID      map[string]*record
	byTag     map[string][]*record
	defaultID string

	// convertMu serializes legacy conversion passes so a url is translated
	// at most once.
	convertMu sync.Mutex
}

// NewRegistry builds the destination table from declared environments.
// defaultID is the declared default destination, if any.
func NewRegistry(envs models.Environments, defaultID string, opts ...Option) (*Registry, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		byID:  make(map[string]*record),
		byTag: make(map[string][]*record),
	}
	for _, env := range envs {
		rec := &record{d: models.NewDestination(env, o.defaultResubmits)}
		r.records = append(r.records, rec)
		if env.ID != "" {
			if _, exists := r.byID[env.ID]; exists {
				return nil, fmt.Errorf("destination %q declared more than once", env.ID)
			}
			r.byID[env.ID] = rec
		}
		for _, tag := range env.Tags {
			r.byTag[tag] = append(r.byTag[tag], rec)
		}
	}
	for tag := range r.byTag {
		if _, clash := r.byID[tag]; clash {
			return nil, fmt.Errorf("destination tag %q is also a destination id", tag)
		}
	}

	switch {
	case defaultID != "":
		if _, ok := r.byID[defaultID]; !ok {
			return nil, NewErrInvalidDefaultDestination(defaultID)
		}
		r.defaultID = defaultID
	case len(r.records) == 1 && r.records[0].d.ID != "":
		r.defaultID = r.records[0].d.ID
	default:
		return nil, NewErrNoDefaultDestination(len(r.records))
	}
	return r, nil
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Get returns a deep copy of the destination with the given id, or of a
// random destination carrying the given tag. An empty id means the default
// destination.
func (r *Registry) Get(idOrTag string) (*models.Destination, error) {
	if idOrTag == "" {
		idOrTag = r.defaultID
	}
	if rec, ok := r.byID[idOrTag]; ok {
		return rec.copy(), nil
	}
	if recs := r.byTag[idOrTag]; len(recs) > 0 {
		return recs[rand.Intn(len(recs))].copy(), nil //nolint:gosec // load spreading only
	}
	return nil, NewErrUnknownDestination(idOrTag)
}

// GetAll returns references to the destination with the given id, or to
// every destination carrying the given tag in declaration order.
func (r *Registry) GetAll(idOrTag string) (Collection, error) {
	if idOrTag == "" {
		idOrTag = r.defaultID
	}
	if rec, ok := r.byID[idOrTag]; ok {
		return Collection{kind: KindID, refs: []Ref{{rec: rec}}}, nil
	}
	if recs, ok := r.byTag[idOrTag]; ok {
		refs := make([]Ref, 0, len(recs))
		for _, rec := range recs {
			refs = append(refs, Ref{rec: rec})
		}
		return Collection{kind: KindTag, refs: refs}, nil
	}
	return Collection{}, NewErrUnknownDestination(idOrTag)
}

// All returns references to every destination in declaration order.
func (r *Registry) All() []Ref {
	refs := make([]Ref, 0, len(r.records))
	for _, rec := range r.records {
		refs = append(refs, Ref{rec: rec})
	}
	return refs
}

func (r *Registry) IsID(idOrTag string) bool {
	_, ok := r.byID[idOrTag]
	return ok
}

func (r *Registry) IsTag(idOrTag string) bool {
	_, ok := r.byTag[idOrTag]
	return ok
}

// Tags returns every destination tag in sorted order.
func (r *Registry) Tags() []string {
	tags := maps.Keys(r.byTag)
	slices.Sort(tags)
	return tags
}

// ConvertLegacy translates the url of every unconverted legacy destination
// into params, using the runner the destination names. Destinations whose
// runner is not among runners, or whose url cannot be translated, are left
// unconverted. Converted destinations are never translated again.
func (r *Registry) ConvertLegacy(ctx context.Context, runners map[string]runner.Runner) {
	r.convertMu.Lock()
	defer r.convertMu.Unlock()

	for _, rec := range r.records {
		rec.mu.RLock()
		pending := rec.d.Legacy && !rec.d.Converted
		id, runnerID, url := rec.d.ID, rec.d.Runner, rec.d.URL
		rec.mu.RUnlock()
		if !pending {
			continue
		}

		rn, ok := runners[runnerID]
		if !ok {
			log.Ctx(ctx).Warn().Str("destination", id).Str("runner", runnerID).
				Msg("legacy destination references an unknown job runner, left unconverted")
			continue
		}
		params, err := rn.URLToDestination(url)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("destination", id).Str("runner", runnerID).
				Msg("failed to convert legacy destination url, left unconverted")
			continue
		}
		if params == nil {
			params = make(map[string]any)
		}

		rec.mu.Lock()
		rec.d.Params = params
		rec.d.Converted = true
		rec.mu.Unlock()
		log.Ctx(ctx).Debug().Str("destination", id).Str("url", url).Interface("params", params).
			Msg("converted legacy destination")
	}
}
