package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/category"
	"github.com/arcadia-bio/biocore/modules/biobank/domain/entities/site"
	"github.com/arcadia-bio/biocore/pkg/composables"
)

type SiteRepository struct{}

func NewSiteRepository() site.Repository {
	return &SiteRepository{}
}

func (r *SiteRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, "biobank_sites", id)
}

func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return site.Site{}, err
	}

	var (
		sid       pgtype.UUID
		name      string
		createdAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx,
		`SELECT id, name, created_at FROM biobank_sites WHERE id=$1`,
		pgUUID(id),
	).Scan(&sid, &name, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.Site{}, site.ErrNotFound
	}
	if err != nil {
		return site.Site{}, err
	}
	return site.Hydrate(fromPgUUID(sid), name, fromPgTime(createdAt)), nil
}

type CategoryRepository struct{}

func NewCategoryRepository() category.Repository {
	return &CategoryRepository{}
}

func (r *CategoryRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, "biobank_categories", id)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (category.Category, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return category.Category{}, err
	}

	var (
		cid                      pgtype.UUID
		kind                     string
		module, visit, timepoint string
		createdAt                pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx,
		`SELECT id, kind, module, visit, timepoint, created_at FROM biobank_categories WHERE id=$1`,
		pgUUID(id),
	).Scan(&cid, &kind, &module, &visit, &timepoint, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return category.Category{}, category.ErrNotFound
	}
	if err != nil {
		return category.Category{}, err
	}

	k, err := category.NewKind(kind)
	if err != nil {
		return category.Category{}, err
	}
	return category.Hydrate(fromPgUUID(cid), k, module, visit, timepoint, fromPgTime(createdAt)), nil
}

func existsByID(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id=$1)`,
		pgUUID(id),
	).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
