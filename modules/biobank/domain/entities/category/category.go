package category

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("category not found")

// Kind is the closed set of order classifications. Handler dispatch is keyed
// on it so an unrecognized classification fails fast instead of silently
// missing a lookup.
type Kind string

const (
	KindBiospecimen         Kind = "biospecimen"
	KindPhysicalMeasurement Kind = "physical_measurement"
)

func NewKind(v string) (Kind, error) {
	k := Kind(v)
	if !k.IsValid() {
		return "", gerrors.Errorf("unknown category kind %q", v)
	}
	return k, nil
}

func (k Kind) IsValid() bool {
	switch k {
	case KindBiospecimen, KindPhysicalMeasurement:
		return true
	}
	return false
}

// Category classifies an order by module, visit and timepoint.
type Category struct {
	id        uuid.UUID
	kind      Kind
	module    string
	visit     string
	timepoint string
	createdAt time.Time
}

func Hydrate(id uuid.UUID, kind Kind, module, visit, timepoint string, createdAt time.Time) Category {
	return Category{
		id:        id,
		kind:      kind,
		module:    module,
		visit:     visit,
		timepoint: timepoint,
		createdAt: createdAt,
	}
}

func (c Category) ID() uuid.UUID        { return c.id }
func (c Category) Kind() Kind           { return c.kind }
func (c Category) Module() string       { return c.module }
func (c Category) Visit() string        { return c.visit }
func (c Category) Timepoint() string    { return c.timepoint }
func (c Category) CreatedAt() time.Time { return c.createdAt }

type Repository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (Category, error)
}
