// Package limits interprets the limit declarations of a job configuration.
package limits

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

// DefaultTotalWalltimeWindow is the window, in days, of a total walltime
// limit declaring none. A window of zero also means the default.
const DefaultTotalWalltimeWindow = 30

type ScopeKind string

const (
	ScopeRegisteredUser ScopeKind = "registered_user_concurrent_jobs"
	ScopeAnonymousUser  ScopeKind = "anonymous_user_concurrent_jobs"
	// ScopeUser and ScopeTotal limit the jobs of a destination id or tag,
	// per user and over all users.
	ScopeUser  ScopeKind = "user_concurrent_jobs"
	ScopeTotal ScopeKind = "total_concurrent_jobs"
)

type ErrMalformedWalltime struct {
	Value string
}

func NewErrMalformedWalltime(value string) ErrMalformedWalltime {
	return ErrMalformedWalltime{Value: value}
}

func (e ErrMalformedWalltime) Error() string {
	return fmt.Sprintf("malformed walltime %q, expected HH:MM:SS", e.Value)
}

type ErrMalformedSize struct {
	Value string
}

func NewErrMalformedSize(value string) ErrMalformedSize {
	return ErrMalformedSize{Value: value}
}

func (e ErrMalformedSize) Error() string {
	return fmt.Sprintf("malformed size %q, expected a byte count or a size such as 10GB", e.Value)
}

type TotalWalltime struct {
	// Window is the number of days the walltime is summed over.
	Window int
	Raw    string
	Delta  time.Duration
}

// Limits is the resolved limits table. Unset limits are nil.
type Limits struct {
	RegisteredUserConcurrentJobs *int
	AnonymousUserConcurrentJobs  *int
	Walltime                     string
	WalltimeDelta                time.Duration
	TotalWalltime                *TotalWalltime
	OutputSize                   *int64
	// DestinationUserConcurrentJobs and DestinationTotalConcurrentJobs are
	// keyed by destination id or tag.
	DestinationUserConcurrentJobs  map[string]int
	DestinationTotalConcurrentJobs map[string]int
}

// ParseSize parses a byte size such as 1048576, 10GB or 1.5 GB. Units are
// binary, so 1KB is 1024 bytes. Fractional sizes are rounded to the nearest
// byte.
func ParseSize(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if size, err := datasize.ParseString(value); err == nil {
		return int64(size.Bytes()), nil
	}

	i := strings.IndexFunc(value, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if i <= 0 {
		return 0, NewErrMalformedSize(value)
	}
	n, err := strconv.ParseFloat(value[:i], 64)
	if err != nil {
		return 0, NewErrMalformedSize(value)
	}
	unit, err := datasize.ParseString("1" + strings.TrimSpace(value[i:]))
	if err != nil {
		return 0, NewErrMalformedSize(value)
	}
	return int64(math.Round(n * float64(unit.Bytes()))), nil
}

// ParseWalltime parses an HH:MM:SS walltime. Fields are not bounded, so
// 48:00:00 is two days.
func ParseWalltime(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, NewErrMalformedWalltime(value)
	}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, NewErrMalformedWalltime(value)
		}
		fields[i] = n
	}
	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}

// New builds the limits table. A malformed value fails the whole table.
func New(ctx context.Context, entries []*models.LimitEntry) (*Limits, error) {
	l := &Limits{
		DestinationUserConcurrentJobs:  make(map[string]int),
		DestinationTotalConcurrentJobs: make(map[string]int),
	}
	for _, entry := range entries {
		if err := l.add(ctx, entry); err != nil {
			return nil, fmt.Errorf("limit %q: %w", entry.Type, err)
		}
	}
	return l, nil
}

func (l *Limits) add(ctx context.Context, entry *models.LimitEntry) error {
	value := strings.TrimSpace(entry.Value)
	switch models.NormalizeLimitType(entry.Type) {
	case models.LimitRegisteredUserConcurrentJobs:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		l.RegisteredUserConcurrentJobs = &n
	case models.LimitAnonymousUserConcurrentJobs:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		l.AnonymousUserConcurrentJobs = &n
	case models.LimitEnvironmentUserConcurrentJobs, models.LimitConcurrentJobs:
		return addScoped(l.DestinationUserConcurrentJobs, entry)
	case models.LimitEnvironmentTotalConcurrentJobs:
		return addScoped(l.DestinationTotalConcurrentJobs, entry)
	case models.LimitWalltime:
		delta, err := ParseWalltime(value)
		if err != nil {
			return err
		}
		l.Walltime, l.WalltimeDelta = value, delta
	case models.LimitTotalWalltime:
		delta, err := ParseWalltime(value)
		if err != nil {
			return err
		}
		window := 0
		if w := strings.TrimSpace(entry.Window); w != "" {
			if window, err = strconv.Atoi(w); err != nil {
				return fmt.Errorf("window: %w", err)
			}
		}
		if window == 0 {
			window = DefaultTotalWalltimeWindow
		}
		l.TotalWalltime = &TotalWalltime{Window: window, Raw: value, Delta: delta}
	case models.LimitOutputSize:
		bytes, err := ParseSize(value)
		if err != nil {
			return err
		}
		l.OutputSize = &bytes
	default:
		log.Ctx(ctx).Warn().Str("type", entry.Type).Msg("ignoring limit of unknown type")
	}
	return nil
}

func addScoped(table map[string]int, entry *models.LimitEntry) error {
	scope := entry.Tag
	if scope == "" {
		scope = entry.ID
	}
	if scope == "" {
		return fmt.Errorf("destination limit without an id or a tag")
	}
	n, err := strconv.Atoi(strings.TrimSpace(entry.Value))
	if err != nil {
		return err
	}
	table[scope] = n
	return nil
}

// ForScope returns the concurrent job limit of a scope. The id is ignored
// for the user scopes and names a destination id or tag otherwise.
func (l *Limits) ForScope(kind ScopeKind, id string) (int, bool) {
	var limit *int
	switch kind {
	case ScopeRegisteredUser:
		limit = l.RegisteredUserConcurrentJobs
	case ScopeAnonymousUser:
		limit = l.AnonymousUserConcurrentJobs
	case ScopeUser:
		n, ok := l.DestinationUserConcurrentJobs[id]
		return n, ok
	case ScopeTotal:
		n, ok := l.DestinationTotalConcurrentJobs[id]
		return n, ok
	}
	if limit == nil {
		return 0, false
	}
	return *limit, true
}

// Copy returns a copy callers may modify.
func (l *Limits) Copy() *Limits {
	out := *l
	if l.RegisteredUserConcurrentJobs != nil {
		n := *l.RegisteredUserConcurrentJobs
		out.RegisteredUserConcurrentJobs = &n
	}
	if l.AnonymousUserConcurrentJobs != nil {
		n := *l.AnonymousUserConcurrentJobs
		out.AnonymousUserConcurrentJobs = &n
	}
	if l.TotalWalltime != nil {
		tw := *l.TotalWalltime
		out.TotalWalltime = &tw
	}
	if l.OutputSize != nil {
		n := *l.OutputSize
		out.OutputSize = &n
	}
	out.DestinationUserConcurrentJobs = maps.Clone(l.DestinationUserConcurrentJobs)
	out.DestinationTotalConcurrentJobs = maps.Clone(l.DestinationTotalConcurrentJobs)
	return &out
}
