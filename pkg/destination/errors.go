package destination

import "fmt"

// ErrUnknownDestination is returned when an id or tag matches no destination.
type ErrUnknownDestination struct {
	IDOrTag string
}

func NewErrUnknownDestination(idOrTag string) ErrUnknownDestination {
	return ErrUnknownDestination{IDOrTag: idOrTag}
}

func (e ErrUnknownDestination) Error() string {
	return fmt.Sprintf("no destination with id or tag %q", e.IDOrTag)
}

// ErrNoDefaultDestination is returned when no default destination is declared
// and there is not exactly one destination to fall back on.
type ErrNoDefaultDestination struct {
	Count int
}

func NewErrNoDefaultDestination(count int) ErrNoDefaultDestination {
	return ErrNoDefaultDestination{Count: count}
}

func (e ErrNoDefaultDestination) Error() string {
	return fmt.Sprintf("no default destination declared and %d destinations to choose from", e.Count)
}

// ErrInvalidDefaultDestination is returned when the declared default is not a
// destination id.
type ErrInvalidDefaultDestination struct {
	ID string
}

func NewErrInvalidDefaultDestination(id string) ErrInvalidDefaultDestination {
	return ErrInvalidDefaultDestination{ID: id}
}

func (e ErrInvalidDefaultDestination) Error() string {
	return fmt.Sprintf("default destination %q is not a destination id", e.ID)
}
