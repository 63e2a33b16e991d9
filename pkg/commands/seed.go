// Package commands holds operational routines shared by CLI entrypoints.
package commands

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type seedSite struct {
	name string
}

type seedCategory struct {
	kind      string
	module    string
	visit     string
	timepoint string
}

var defaultSites = []seedSite{
	{name: "Central Processing Lab"},
	{name: "North Clinic"},
	{name: "South Clinic"},
	{name: "Mobile Collection Unit"},
}

var defaultCategories = []seedCategory{
	{kind: "biospecimen", module: "BIO", visit: "BASELINE", timepoint: "T0"},
	{kind: "biospecimen", module: "BIO", visit: "FOLLOWUP", timepoint: "T1"},
	{kind: "physical_measurement", module: "PM", visit: "BASELINE", timepoint: "T0"},
	{kind: "physical_measurement", module: "PM", visit: "FOLLOWUP", timepoint: "T1"},
}

// SeedReferenceData inserts the built-in collection sites and order
// categories. Existing rows are left untouched, so the command is safe to
// rerun against a populated database.
func SeedReferenceData(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return gerrors.Wrap(err, "begin seed transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var sites, categories int64
	for _, s := range defaultSites {
		tag, err := tx.Exec(ctx, `
			INSERT INTO biobank_sites (name)
			SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM biobank_sites WHERE name = $1)`,
			s.name,
		)
		if err != nil {
			return gerrors.Wrapf(err, "seed site %q", s.name)
		}
		sites += tag.RowsAffected()
	}

	for _, c := range defaultCategories {
		tag, err := tx.Exec(ctx, `
			INSERT INTO biobank_categories (kind, module, visit, timepoint)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (module, visit, timepoint) DO NOTHING`,
			c.kind, c.module, c.visit, c.timepoint,
		)
		if err != nil {
			return gerrors.Wrapf(err, "seed category %s/%s/%s", c.module, c.visit, c.timepoint)
		}
		categories += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return gerrors.Wrap(err, "commit seed transaction")
	}

	log.WithFields(logrus.Fields{
		"sites":      sites,
		"categories": categories,
	}).Info("reference data seeded")
	return nil
}
