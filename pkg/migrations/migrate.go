// Package migrations applies embedded schema migrations through goose.
package migrations

import (
	"database/sql"
	"embed"
	"io/fs"

	gerrors "github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

const migrationsDir = "infrastructure/persistence/schema"

// Run applies every pending migration from the given embedded filesystems.
// Each module embeds its schema under infrastructure/persistence/schema.
func Run(db *sql.DB, logger *logrus.Logger, schemas []*embed.FS) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return gerrors.Wrap(err, "set goose dialect")
	}
	goose.SetLogger(gooseLogger{logger})

	for _, schema := range schemas {
		sub, err := fs.Sub(schema, migrationsDir)
		if err != nil {
			return gerrors.Wrap(err, "open schema dir")
		}
		goose.SetBaseFS(sub)
		if err := goose.Up(db, "."); err != nil {
			return gerrors.Wrap(err, "apply migrations")
		}
	}
	goose.SetBaseFS(nil)
	return nil
}

type gooseLogger struct {
	log *logrus.Logger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Infof(format, v...) }
