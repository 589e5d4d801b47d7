package destination

import (
	"github.com/bacalhau-project/jobconf/pkg/models"
)

type Kind int

const (
	KindID Kind = iota
	KindTag
)

func (k Kind) String() string {
	if k == KindTag {
		return "tag"
	}
	return "id"
}

// Collection is the result of a lookup by id or tag.
type Collection struct {
	kind Kind
	refs []Ref
}

func (c Collection) Kind() Kind {
	return c.kind
}

func (c Collection) IsID() bool {
	return c.kind == KindID && len(c.refs) > 0
}

func (c Collection) IsTag() bool {
	return c.kind == KindTag
}

func (c Collection) Refs() []Ref {
	return c.refs
}

func (c Collection) Len() int {
	return len(c.refs)
}

// Ref is a read-only view of a live destination record. Values returned by
// its accessors are shared with every other reader and must not be modified.
type Ref struct {
	rec *record
}

// Same reports whether both references point at the same record.
func (r Ref) Same(other Ref) bool {
	return r.rec == other.rec
}

func (r Ref) ID() string {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.ID
}

func (r Ref) Runner() string {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Runner
}

func (r Ref) Params() map[string]any {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Params
}

func (r Ref) Env() []models.EnvVar {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Env
}

func (r Ref) Resubmit() []models.ResubmitRule {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Resubmit
}

func (r Ref) Tags() []string {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Tags
}

func (r Ref) URL() string {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.URL
}

func (r Ref) Legacy() bool {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Legacy
}

func (r Ref) Converted() bool {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Converted
}

func (r Ref) Metrics() models.MetricsConf {
	r.rec.mu.RLock()
	defer r.rec.mu.RUnlock()
	return r.rec.d.Metrics
}

// Copy returns an owned deep copy of the destination.
func (r Ref) Copy() *models.Destination {
	return r.rec.copy()
}
