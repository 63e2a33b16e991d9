package site

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("site not found")

// Site is a physical collection location. Owned by program configuration;
// this core only confirms references.
type Site struct {
	id        uuid.UUID
	name      string
	createdAt time.Time
}

func Hydrate(id uuid.UUID, name string, createdAt time.Time) Site {
	return Site{id: id, name: name, createdAt: createdAt}
}

func (s Site) ID() uuid.UUID        { return s.id }
func (s Site) Name() string         { return s.name }
func (s Site) CreatedAt() time.Time { return s.createdAt }

type Repository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (Site, error)
}
